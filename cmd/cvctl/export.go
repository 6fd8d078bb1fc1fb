package main

import (
	"errors"

	"github.com/spf13/cobra"

	"cvbuilder/internal/builder"
	"cvbuilder/internal/cv"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export <document.json>",
		Short: "Render the document to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(opts.fs, args[0], opts.image)
			if err != nil {
				return err
			}

			store, err := opts.newStore(outDir)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Hydrate(doc, ""); err != nil {
				return err
			}
			phase := store.ExportDocument(cmd.Context())
			state := store.State()
			if phase != builder.PhaseFulfilled {
				return errors.New(state.Notification.Text)
			}

			downloader := builder.NewFileDownloader(opts.fs, outDir)
			cmd.Println(titleStyle.Render(state.Notification.Text))
			cmd.Printf("%s %s\n", labelStyle.Render("File:"), downloader.Path(cv.DownloadFilename(doc.Personal.Name)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the PDF into")
	return cmd
}
