package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cvbuilder/internal/cv"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <document.json>",
		Short: "Report completeness and field errors without contacting the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(opts.fs, args[0], opts.image)
			if err != nil {
				return err
			}

			cmd.Println(titleStyle.Render("CV Check"))

			missing := missingRequirements(doc)
			if len(missing) == 0 {
				cmd.Printf("%s %s\n", labelStyle.Render("Complete:"), "yes")
			} else {
				cmd.Printf("%s %s\n", labelStyle.Render("Complete:"), "no")
				for _, m := range missing {
					cmd.Printf("  • missing %s\n", m)
				}
			}
			cmd.Printf("%s %s\n", labelStyle.Render("PDF name:"), cv.DownloadFilename(doc.Personal.Name))

			err = cv.Validate(cv.Sanitize(doc))
			var verr *cv.ValidationError
			if errors.As(err, &verr) {
				cmd.Println(errorStyle.Render(fmt.Sprintf("%d field error(s)", len(verr.Fields))))
				for _, f := range verr.Fields {
					cmd.Printf("  • %s: %s\n", f.Field, f.Message)
				}
				return errors.New("document is not valid")
			}
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return errors.New("document is incomplete")
			}
			return nil
		},
	}
}
