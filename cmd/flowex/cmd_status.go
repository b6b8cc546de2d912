package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the restored session state",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sess := a.manager.Session()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Status:\t%s\n", sess.Status)
	if sess.User != nil {
		fmt.Fprintf(w, "User:\t%s\n", sess.User.Email)
	}
	if len(sess.Roles) > 0 {
		fmt.Fprintf(w, "Roles:\t%v\n", sess.Roles)
	}
	fmt.Fprintf(w, "Storage:\t%s\n", a.cfg.Storage.Backend)
	return w.Flush()
}
