package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/filedeck/internal/domain/delimited"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

var csvFlags struct {
	delimiter string
	strict    bool
}

var csvCmd = &cobra.Command{
	Use:   "csv [file]",
	Short: "Tokenize delimited text into JSON",
	Long: `Reads delimited text from a file (or stdin) and writes one JSON array of
fields per record. Quoted fields may contain the delimiter; "" inside
quotes is a literal quote.

Examples:
  filedeck csv people.csv
  filedeck csv --delimiter tab < export.tsv
  echo 'a,"b,c",d' | filedeck csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCSV,
}

func init() {
	csvCmd.Flags().StringVarP(&csvFlags.delimiter, "delimiter", "d", "",
		"delimiter character or name (comma, tab, semicolon, pipe); default from the file extension")
	csvCmd.Flags().BoolVar(&csvFlags.strict, "strict", false, "fail on unterminated quotes")
}

// csvDelimiter resolves the flag, falling back to the file extension
func csvDelimiter(flag, file string) (rune, error) {
	switch {
	case flag == "":
		d, _ := delimited.DelimiterFor(file)
		return d, nil
	case utf8.RuneCountInString(flag) == 1:
		d, _ := utf8.DecodeRuneInString(flag)
		if d == '"' || d == '\n' || d == '\r' {
			return 0, fmt.Errorf("invalid delimiter %q", flag)
		}
		return d, nil
	}
	if d, ok := delimited.DelimiterFor(flag); ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown delimiter %q", flag)
}

func runCSV(cmd *cobra.Command, args []string) error {
	var (
		in   io.Reader = cmd.InOrStdin()
		name string
	)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in, name = f, args[0]
	}

	delim, err := csvDelimiter(csvFlags.delimiter, name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sc := delimited.NewScanner(in, delimited.Options{Delimiter: delim, Strict: csvFlags.strict}, utils.MaxLineSize)
	for sc.Scan() {
		line, err := sonic.Marshal(sc.Fields())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		var lineErr *delimited.LineError
		if errors.As(err, &lineErr) {
			return fmt.Errorf("%s: %w", displayName(name), lineErr)
		}
		return err
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "stdin"
	}
	return name
}
