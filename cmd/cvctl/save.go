package main

import (
	"errors"

	"github.com/spf13/cobra"

	"cvbuilder/internal/builder"
	"cvbuilder/internal/cv"
)

func newSaveCmd(opts *rootOptions) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "save <document.json>",
		Short: "Save the document and print its remote ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(opts.fs, args[0], opts.image)
			if err != nil {
				return err
			}
			if !cv.IsComplete(doc) {
				return errors.New("document is incomplete, run cvctl check for details")
			}

			store, err := opts.newStore("")
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Hydrate(doc, documentID); err != nil {
				return err
			}
			phase := store.SaveDocument(cmd.Context())
			state := store.State()
			if phase != builder.PhaseFulfilled {
				return errors.New(state.Notification.Text)
			}

			cmd.Println(titleStyle.Render(state.Notification.Text))
			cmd.Printf("%s %s\n", labelStyle.Render("Document ID:"), state.RemoteDocumentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "id", "", "update an existing document instead of creating one")
	return cmd
}
