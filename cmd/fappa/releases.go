package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

func (a *app) releases(args []string) error {
	flags := pflag.NewFlagSet("releases", pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return &usageError{msg: "releases takes no arguments"}
	}

	selected, err := a.selectedReleases()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODENAME\tBASE\tCHANNEL\tIMAGE\tLOCALES")
	for _, r := range selected {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Codename, r.Base(), r.Channel, r.Image(), r.LocalesPackage())
	}
	return w.Flush()
}
