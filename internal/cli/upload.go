package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/uploader"
)

type uploadOptions struct {
	description string
	concurrency int
	noCaptions  bool
	transfer    time.Duration
}

func newUploadCmd() *cobra.Command {
	uo := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload photos and videos to your album",
		Long: `Uploads local files in one batch. The bytes go straight to the media
library; the server only negotiates the session and records the result.

Examples:
  uploader upload IMG_0001.jpg IMG_0002.jpg
  uploader upload --description "Ceremony" ceremony/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args, uo)
		},
	}

	cmd.Flags().StringVarP(&uo.description, "description", "d", "", "Description applied to every item")
	cmd.Flags().IntVarP(&uo.concurrency, "concurrency", "c", uploader.DefaultConcurrency, "Parallel transfers")
	cmd.Flags().BoolVar(&uo.noCaptions, "no-captions", false, "Do not caption items from EXIF camera and date")
	cmd.Flags().DurationVar(&uo.transfer, "transfer-timeout", 30*time.Minute, "Timeout for each file transfer")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string, uo *uploadOptions) error {
	if opts.SessionToken == "" {
		return errors.New("not signed in: run login and verify first, then pass --session")
	}

	files, err := uploader.DescribeAll(args)
	if err != nil {
		return err
	}

	up := uploader.New(newAPIClient(), uploader.NewExecutor(nil, uo.transfer, uo.concurrency))
	// an explicit description beats EXIF captions
	up.UseCaptions = !uo.noCaptions && uo.description == ""

	result, err := up.Upload(cmd.Context(), files, uo.description)
	out := cmd.OutOrStdout()
	if result != nil && result.Transfer != nil {
		printFailures(out, result.Transfer.Failures)
	}
	if err != nil {
		return err
	}

	printFinalize(out, result.Finalize)
	return nil
}

func printFailures(out io.Writer, failures map[string]error) {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "FAILED   %s: %v\n", name, failures[name])
	}
}

func printFinalize(out io.Writer, result *models.FinalizeResult) {
	for _, item := range result.Items {
		switch item.Status {
		case models.FinalizeItemCreated:
			fmt.Fprintf(out, "UPLOADED %s\n", item.Filename)
		default:
			fmt.Fprintf(out, "FAILED   %s: %s\n", item.Filename, item.Message)
		}
	}
	fmt.Fprintln(out, result.Message)
}
