package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"insightdeck/internal/adapter/api"
	"insightdeck/internal/app"
	"insightdeck/internal/domain"

	"github.com/spf13/cobra"
)

// newPassword prompts for a password twice.
func (c *cli) newPassword() (string, error) {
	password, err := c.prompt("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := c.prompt("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", &domain.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return password, nil
}

// activeRequest addresses the active dataset.
func activeRequest(ws *app.Workspace) (api.DatasetRequest, error) {
	ws.Dataset.Wait()
	d := ws.Dataset.Snapshot()
	if !d.Active() {
		return api.DatasetRequest{}, &domain.ValidationError{Field: "file", Message: "no active dataset, run insightdeck use <file-id>"}
	}
	return api.DatasetRequest{FileID: d.FileID, SheetIndex: d.SheetIndex}, nil
}

func printDataset(cmd *cobra.Command, d domain.ActiveDataset) {
	out := cmd.OutOrStdout()
	if !d.Active() {
		fmt.Fprintln(out, "no active dataset")
		return
	}
	fmt.Fprintf(out, "file:  %s\nname:  %s\nsheet: %d\nkind:  %s\n", d.FileID, d.FileName, d.SheetIndex, d.Kind)
}

func newFilesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List uploaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			list, err := c.client.ListFiles(ctx)
			if err != nil {
				return err
			}
			active := ws.Dataset.Snapshot().FileID
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tSTATUS\tSIZE")
			for _, f := range list.Files {
				mark := ""
				if f.FileID == active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", mark, f.FileID, f.DisplayName(), f.Status, f.FileSize)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.authed(cmd.Context())
			if err != nil {
				return err
			}
			return ws.DeleteFile(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newUploadCmd(c *cli) *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file and make it the active dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := ws.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			if process {
				if err := c.process(cmd, ws, info.FileID); err != nil {
					return err
				}
			}
			ws.Dataset.Wait()
			printDataset(cmd, ws.Dataset.Snapshot())
			return nil
		},
	}
	cmd.Flags().BoolVar(&process, "process", true, "process the file after upload")
	return cmd
}

func (c *cli) process(cmd *cobra.Command, ws *app.Workspace, fileID string) error {
	ctx := cmd.Context()
	st, err := c.client.ProcessFile(ctx, fileID)
	if err != nil {
		ws.Notify.Error("Processing failed", app.WithDescription(domain.MessageOf(err)))
		return err
	}
	if st.Status == "failed" {
		ws.Notify.Error("Processing failed", app.WithDescription(st.Error))
		return fmt.Errorf("processing %s failed: %s", fileID, st.Error)
	}
	ws.Dataset.Wait()
	if ws.Dataset.Snapshot().FileID == fileID {
		ws.Dataset.Refresh(ctx)
	}
	ws.Notify.Success("File processed")
	return nil
}

func newProcessCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "process [file-id]",
		Short: "Process a file (default: the active dataset)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.authed(cmd.Context())
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			} else {
				req, err := activeRequest(ws)
				if err != nil {
					return err
				}
				id = req.FileID
			}
			return c.process(cmd, ws, id)
		},
	}
}

func newUseCmd(c *cli) *cobra.Command {
	var (
		clearActive bool
		sheet       int
	)
	cmd := &cobra.Command{
		Use:   "use [file-id]",
		Short: "Select the active dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			switch {
			case clearActive:
				if err := ws.Dataset.Clear(ctx); err != nil {
					return err
				}
			case len(args) == 1:
				if err := ws.Dataset.SetActiveFileID(ctx, args[0]); err != nil {
					return err
				}
			}
			ws.Dataset.Wait()
			if cmd.Flags().Changed("sheet") {
				if err := ws.Dataset.SetSheetIndex(sheet); err != nil {
					return err
				}
			}
			printDataset(cmd, ws.Dataset.Snapshot())
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearActive, "clear", false, "clear the active dataset")
	cmd.Flags().IntVar(&sheet, "sheet", 0, "sheet index of the active dataset")
	return cmd
}

func newDatasetCmd(c *cli) *cobra.Command {
	var showText, showColumns bool
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Show the active dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.authed(cmd.Context())
			if err != nil {
				return err
			}
			ws.Dataset.Wait()
			d := ws.Dataset.Snapshot()
			printDataset(cmd, d)
			if showText && d.IsTextOnly() {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), d.TextContent)
			}
			if showColumns && d.Kind == domain.KindTabular {
				cols, err := c.client.Columns(cmd.Context(), d.FileID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\nCOLUMN\tTYPE\tNULLS")
				for _, col := range cols.Columns {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", col.Name, col.Dtype, col.NullCount)
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "text", false, "print the text of a text-only dataset")
	cmd.Flags().BoolVar(&showColumns, "columns", false, "list the columns of a tabular dataset")
	return cmd
}

func newInsightsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Generate insights about the active dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			req, err := activeRequest(ws)
			if err != nil {
				return err
			}
			res, err := c.client.Insights(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Summary != "" {
				fmt.Fprintln(out, res.Summary)
			}
			for _, in := range res.Insights {
				fmt.Fprintf(out, "- %s: %s\n", in.Title, in.Description)
			}
			bal := ws.Session.RefreshCredits(ctx)
			if bal.Display() < 1 {
				ws.Notify.Warning("Low credits", app.WithDescription(fmt.Sprintf("%.2f credits left", bal.Display())))
			}
			return nil
		},
	}
}

func newAskCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the active dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			req, err := activeRequest(ws)
			if err != nil {
				return err
			}
			res, err := c.client.Query(ctx, api.QueryRequest{FileID: req.FileID, SheetIndex: req.SheetIndex, Query: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
			ws.Session.RefreshCredits(ctx)
			return nil
		},
	}
}

func newChartsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charts",
		Short: "Recommend charts for the active dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			req, err := activeRequest(ws)
			if err != nil {
				return err
			}
			recs, err := c.client.RecommendCharts(ctx, req)
			if err != nil {
				return err
			}
			for _, r := range recs.Recommendations {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", r.ChartType, r.Title)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List supported chart types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.workspace(cmd.Context()); err != nil {
				return err
			}
			types, err := c.client.ChartTypes(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	})
	return cmd
}
