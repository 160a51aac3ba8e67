package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zlnvch/drawroom/canvas"
	"github.com/zlnvch/drawroom/client"
	"github.com/zlnvch/drawroom/service"
)

func buildTokenCmd() *cobra.Command {
	var (
		userId string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create a user if needed and print a token for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jwtSecret, err := cfg.JWTSecretBytes()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			drawroomStore, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc, err := service.NewService(drawroomStore, nil, nil, jwtSecret, nil)
			if err != nil {
				return err
			}
			if name == "" {
				name = userId
			}
			_, token, err := svc.IssueToken(ctx, userId, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userId, "user", "", "User id")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the user id)")
	cmd.MarkFlagRequired("user")
	return cmd
}

type snapshotOptions struct {
	server string
	token  string
	room   string
	out    string
	wait   time.Duration
	width  int
	height int
}

func buildSnapshotCmd() *cobra.Command {
	var opts snapshotOptions

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render a room's drawing to a PDF or PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := newRenderTarget(opts.out, opts.width, opts.height)
			if err != nil {
				return err
			}
			if err := snapshot(cmd.Context(), opts, target); err != nil {
				return err
			}

			f, err := os.Create(opts.out)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := target.WriteTo(f); err != nil {
				return fmt.Errorf("write %s: %w", opts.out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "Auth token")
	cmd.Flags().StringVar(&opts.room, "room", "", "Room id")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output file, .pdf or .png")
	cmd.Flags().DurationVar(&opts.wait, "wait", 2*time.Second, "How long to listen for live updates")
	cmd.Flags().IntVar(&opts.width, "width", 1280, "Output width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 800, "Output height in pixels")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("room")
	cmd.MarkFlagRequired("out")
	return cmd
}

type renderTarget interface {
	canvas.Surface
	io.WriterTo
}

func newRenderTarget(out string, width, height int) (renderTarget, error) {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".pdf":
		return canvas.NewPDFSurface(float64(width), float64(height)), nil
	case ".png":
		return canvas.NewRasterSurface(width, height), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", filepath.Ext(out))
	}
}

// snapshot replays the room's history, listens for opts.wait and renders what
// the engine holds at the end into target.
func snapshot(ctx context.Context, opts snapshotOptions, target canvas.Surface) error {
	conn, err := client.Dial(ctx, opts.server, opts.token)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	session := client.NewSession(conn, opts.room)
	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(runCtx) }()
	defer func() {
		cancel()
		<-runErr
	}()

	applied, err := session.LoadHistory(ctx, nil, opts.server)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	log.Printf("Replayed %d shape messages for room %s", applied, opts.room)

	select {
	case <-time.After(opts.wait):
	case <-conn.Done():
		return client.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return session.Do(ctx, func(e *canvas.Engine) error {
		e.Render(target)
		return nil
	})
}
