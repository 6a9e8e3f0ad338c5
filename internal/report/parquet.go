package report

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetParallelism = 4

// ParquetSink writes records into a Parquet file whose schema is derived
// from the column layout. Rows are buffered in row groups and the file is
// only readable after Close writes the footer.
type ParquetSink struct {
	path string
	cols []Column
	keys []string
	fw   source.ParquetFile
	pw   *writer.JSONWriter
}

var unsafeColumnChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NewParquetSink creates path with the given compression codec (SNAPPY,
// GZIP or ZSTD; anything else means SNAPPY). Existing files are refused.
func NewParquetSink(path string, cols []Column, compression string) (*ParquetSink, error) {
	f, err := createExclusive(path)
	if err != nil {
		return nil, err
	}
	f.Close()

	schema, keys, err := parquetSchema(cols)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("parquet output %s: open: %w", path, err)
	}

	pw, err := writer.NewJSONWriter(schema, fw, parquetParallelism)
	if err != nil {
		_ = fw.Close()
		os.Remove(path)
		return nil, fmt.Errorf("parquet output %s: schema: %w", path, err)
	}

	switch strings.ToUpper(compression) {
	case "ZSTD":
		pw.CompressionType = parquet.CompressionCodec_ZSTD
	case "GZIP":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	}

	return &ParquetSink{path: path, cols: cols, keys: keys, fw: fw, pw: pw}, nil
}

// Path returns the file being written.
func (s *ParquetSink) Path() string { return s.path }

func (s *ParquetSink) Write(rec Record) error {
	if err := checkArity(s.cols, rec); err != nil {
		return fmt.Errorf("parquet output %s: %w", s.path, err)
	}

	row := make(map[string]any, len(rec))
	for i, c := range s.cols {
		switch c.Kind {
		case KindInt64:
			n, ok := asInt64(rec[i])
			if !ok {
				return fmt.Errorf("parquet output %s: column %s: %T is not an integer", s.path, c.Name, rec[i])
			}
			row[s.keys[i]] = n
		default:
			row[s.keys[i]] = formatValue(rec[i])
		}
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("parquet output %s: marshal: %w", s.path, err)
	}
	if err := s.pw.Write(string(data)); err != nil {
		return fmt.Errorf("parquet output %s: write: %w", s.path, err)
	}
	return nil
}

func (s *ParquetSink) Close() error {
	if err := s.pw.WriteStop(); err != nil {
		_ = s.fw.Close()
		return fmt.Errorf("parquet output %s: finalize: %w", s.path, err)
	}
	return s.fw.Close()
}

// Remove abandons the writer and deletes the file.
func (s *ParquetSink) Remove() error {
	_ = s.fw.Close()
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("parquet output %s: remove: %w", s.path, err)
	}
	return nil
}

type schemaNode struct {
	Tag    string       `json:"Tag"`
	Fields []schemaNode `json:"Fields,omitempty"`
}

// parquetSchema builds a parquet-go JSON schema for cols. Column names are
// reduced to [A-Za-z0-9_], start with a letter and are unique ignoring case.
// JSON rows are keyed by the returned column names.
func parquetSchema(cols []Column) (string, []string, error) {
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("parquet schema needs at least one column")
	}

	root := schemaNode{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	keys := make([]string, len(cols))
	used := make(map[string]bool, len(cols))

	for i, c := range cols {
		name := unsafeColumnChars.ReplaceAllString(c.Name, "_")
		if name == "" || !isASCIILetter(name[0]) {
			name = "c_" + name
		}
		base := name
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(name)] = true

		keys[i] = name
		inname := strings.ToUpper(name[:1]) + name[1:]
		var typ string
		switch c.Kind {
		case KindInt64:
			typ = "type=INT64"
		default:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		root.Fields = append(root.Fields, schemaNode{
			Tag: fmt.Sprintf("name=%s, inname=%s, %s, repetitiontype=REQUIRED", name, inname, typ),
		})
	}

	data, err := json.Marshal(root)
	if err != nil {
		return "", nil, fmt.Errorf("parquet schema: %w", err)
	}
	return string(data), keys, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
