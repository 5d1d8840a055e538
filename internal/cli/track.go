package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/recorder"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	credentials
	Name     string
	Type     string
	Details  string
	Evidence string
	Policy   string
	Tick     time.Duration
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{}
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Time an activity in the terminal and record it",
		Long: `Start a session timer, then press Enter (or Ctrl-C) to finish it.

The finished activity is stored with review status pending. An optional
evidence file is uploaded when the session finishes. When the upload or the
write fails the session is kept and the command offers to retry; a session
left open can be finished later through the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, rootOpts, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Name, "name", "", "activity name")
	cmd.Flags().StringVar(&opts.Type, "type", string(domain.ActivityTypeStudy), "activity type (Study|Workout|Break)")
	cmd.Flags().StringVar(&opts.Details, "details", "", "type specific details as JSON")
	cmd.Flags().StringVar(&opts.Evidence, "evidence", "", "path of an evidence file to attach")
	cmd.Flags().StringVar(&opts.Policy, "policy", rootOpts.cfg.DurationPolicy, "duration policy (clamp|floor)")
	cmd.Flags().DurationVar(&opts.Tick, "tick", time.Second, "timer refresh interval")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runTrack(cmd *cobra.Command, rootOpts *RootOptions, opts *TrackOptions) error {
	ctx := cmd.Context()
	activityType, err := domain.ParseActivityType(opts.Type)
	if err != nil {
		return err
	}
	var details domain.Details
	if opts.Details != "" {
		if details, err = domain.ParseDetails(activityType, []byte(opts.Details)); err != nil {
			return err
		}
	}
	policy, err := recorder.ParseDurationPolicy(opts.Policy)
	if err != nil {
		return err
	}
	var evidence *recorder.Evidence
	if opts.Evidence != "" {
		if evidence, err = readEvidenceFile(opts.Evidence); err != nil {
			return err
		}
	}

	b, err := rootOpts.open(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer b.close()
	actor, err := b.signIn(ctx, opts.Email, opts.password())
	if err != nil {
		return err
	}

	status := cmd.ErrOrStderr()
	rec := recorder.New(actor.UserID, b.service, b.sessions, b.uploader,
		recorder.WithDurationPolicy(policy),
		recorder.WithLogger(b.logger),
		recorder.WithTick(func(elapsed time.Duration) {
			fmt.Fprintf(status, "\r%s %s", opts.Name, formatElapsed(elapsed))
		}, opts.Tick))
	defer rec.Close()

	if err := rec.Start(ctx, opts.Name, activityType, details); err != nil {
		return err
	}
	if evidence != nil {
		if err := rec.AttachEvidence(ctx, *evidence); err != nil {
			return err
		}
	}
	fmt.Fprintf(status, "tracking %q, press Enter to finish\n", opts.Name)

	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()
	lines := readLines(inputCtx, cmd.InOrStdin())
	_, _ = nextLine(ctx, lines)
	rec.Close()
	fmt.Fprintln(status)

	activity, err := finishWithRetry(ctx, rec, status, lines)
	if err != nil {
		return err
	}
	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return out.Emit(activityJSON(*activity), func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "recorded %s (%s, %d min) as %s\n",
			activity.Name, activity.Type, activity.DurationMinutes, activity.Status)
		return err
	})
}

// finishWithRetry finishes the session, asking before each retry after an
// upload or storage failure. Declining leaves the session open.
func finishWithRetry(ctx context.Context, rec *recorder.Recorder, status io.Writer, lines <-chan string) (*domain.Activity, error) {
	for {
		activity, err := rec.Finish(ctx)
		if err == nil {
			return activity, nil
		}
		if !errors.Is(err, domain.ErrUpload) && !errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		fmt.Fprintf(status, "finish failed: %v\npress Enter to retry, or q and Enter to keep the session open\n", err)
		answer, ok := nextLine(ctx, lines)
		if !ok || strings.EqualFold(answer, "q") {
			return nil, fmt.Errorf("session kept open: %w", err)
		}
	}
}

// readLines streams trimmed input lines until EOF or ctx ends.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return
			}
			select {
			case lines <- strings.TrimSpace(line):
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func nextLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case line, ok := <-lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func readEvidenceFile(path string) (*recorder.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &recorder.Evidence{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

func activityJSON(a domain.Activity) map[string]any {
	details := map[string]any{}
	if a.Details != nil {
		details = a.Details.Fields()
	}
	return map[string]any{
		"id":               a.ID,
		"name":             a.Name,
		"activity_type":    string(a.Type),
		"duration_minutes": a.DurationMinutes,
		"details":          details,
		"evidence_url":     a.EvidenceURL,
		"status":           string(a.Status),
		"created_at":       a.CreatedAt,
	}
}
