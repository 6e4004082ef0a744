package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/keepsake/internal/app/keepsake"
	"github.com/PabloGalante/keepsake/internal/audio"
	"github.com/PabloGalante/keepsake/internal/bootstrap"
	"github.com/PabloGalante/keepsake/internal/configutil"
	"github.com/PabloGalante/keepsake/internal/domain"
)

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Write a keepsake and save letter, image and voice to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			moodFlag, _ := cmd.Flags().GetString("mood")
			mood, ok := domain.ParseMood(moodFlag)
			if !ok {
				return fmt.Errorf("unknown mood %q", moodFlag)
			}
			in := domain.MemoryInput{
				Name:         configutil.FlagOrViperString(cmd, "name", ""),
				Relationship: configutil.FlagOrViperString(cmd, "relationship", ""),
				Detail:       configutil.FlagOrViperString(cmd, "detail", ""),
				Mood:         mood,
			}
			if !in.Complete() {
				return domain.ErrIncompleteInput
			}
			outDir := configutil.FlagOrViperString(cmd, "out", "")

			ctx := cmd.Context()
			gen, err := bootstrap.NewGenerator(ctx, cfg)
			if err != nil {
				return err
			}
			store, closeStore, err := bootstrap.OpenArchive(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			// the CLI has nothing to show early, so it always waits for all three
			svc := keepsake.NewService(gen, store, keepsake.Options{Mode: domain.RevealSequential})
			defer svc.Close()

			sess := svc.NewSession(ctx)
			if _, err := sess.Start(); err != nil {
				return err
			}
			snap, err := sess.Submit(ctx, in)
			var uerr *domain.UserError
			if errors.As(err, &uerr) {
				return fmt.Errorf("%s (%s)", uerr.Message, uerr.Kind)
			}
			if err != nil {
				return err
			}
			reveal, ok := snap.State.(domain.Reveal)
			if !ok {
				return fmt.Errorf("unexpected screen %s", snap.State.Screen())
			}

			written, err := writeKeepsake(ctx, outDir, reveal.Result)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, reveal.Result.Letter)
			_, _ = fmt.Fprintln(out)
			printWritten(out, snap.KeepsakeID, written)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Name of the person remembered.")
	cmd.Flags().String("relationship", "", "Who they were to you.")
	cmd.Flags().String("detail", "", "One detail you remember.")
	cmd.Flags().String("mood", string(domain.MoodNostalgic), "nostalgic|bittersweet|hopeful|grieving")
	cmd.Flags().String("out", "keepsake-out", "Output directory.")
	return cmd
}

// writeKeepsake writes letter.md, image.png, voice.wav and citations.json.
// Image and voice are skipped when they were not generated.
func writeKeepsake(ctx context.Context, dir string, res domain.GenerationResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string

	letterPath := filepath.Join(dir, "letter.md")
	if err := os.WriteFile(letterPath, []byte(res.Letter+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write letter: %w", err)
	}
	written = append(written, letterPath)

	if res.ImageURL != "" {
		mime, data, err := domain.ParseDataURI(res.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		name := "image.png"
		if mime == "image/jpeg" {
			name = "image.jpg"
		}
		imagePath := filepath.Join(dir, name)
		if err := os.WriteFile(imagePath, data, 0o644); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
		written = append(written, imagePath)
	}

	if res.HasAudio() {
		buf, err := audio.Decode(res.AudioData, nil)
		if err != nil {
			return nil, fmt.Errorf("decode voice: %w", err)
		}
		out := audio.FileOutput{Path: filepath.Join(dir, "voice.wav")}
		if err := out.Play(ctx, buf); err != nil {
			return nil, err
		}
		written = append(written, out.Path)
	}

	cites := res.Citations
	if cites == nil {
		cites = []domain.Citation{}
	}
	raw, err := json.MarshalIndent(cites, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode citations: %w", err)
	}
	citesPath := filepath.Join(dir, "citations.json")
	if err := os.WriteFile(citesPath, append(raw, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write citations: %w", err)
	}
	written = append(written, citesPath)

	return written, nil
}

func printWritten(w io.Writer, id domain.KeepsakeID, paths []string) {
	_, _ = fmt.Fprintf(w, "keepsake %s\n", id)
	for _, p := range paths {
		_, _ = fmt.Fprintf(w, "  wrote %s\n", p)
	}
}
