package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Inspect the available deployments",
	Long: `A deployment describes one kiosk installation: its event types, activity
modes, transition table, report columns and time zone. Built-in deployments
can be extended or overridden with YAML files in deployments_dir.`,
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available deployments",
	RunE:  runDeploymentsList,
}

var deploymentsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a deployment's YAML definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentsShow,
}

func init() {
	deploymentsCmd.AddCommand(deploymentsListCmd)
	deploymentsCmd.AddCommand(deploymentsShowCmd)
	rootCmd.AddCommand(deploymentsCmd)
}

func runDeploymentsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := processors.LoadRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME ZONE\tEVENT TYPES\tSESSIONS\tDESCRIPTION")
	for _, d := range reg.List() {
		sessions := "no"
		if d.Session.Enabled {
			sessions = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", d.Name, d.TimeZone, d.Catalog().Len(), sessions, d.Description)
	}
	return w.Flush()
}

func runDeploymentsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := processors.LoadDeployment(cfg, args[0])
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(d.Source())
	return err
}
