// client submits a job to the render server and saves the images it sends
// back as PNG files in the output directory.
//
//	client [flags] width height [max_iterations] [supersample]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/coder/websocket"

	fractal "github.com/marben/dist_fractal"
	"github.com/marben/dist_fractal/internal/cli"
	"github.com/marben/dist_fractal/internal/output"
)

// main is the entry point for the CLI client.
// It runs the client logic and logs any fatal errors.
func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run parses the job, sends it to the server and saves the returned images.
func run(args []string) error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	server := fs.String("server", "ws://localhost:8080/ws", "render server websocket url")
	outDir := fs.String("out", "images", "output directory")
	maxImage := fs.Int64("max-image", 1<<30, "largest image accepted from the server, in bytes")
	jobFlags := cli.Register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	job, err := jobFlags.Job(fs.Args())
	if err != nil {
		return err
	}

	// Step 1: Connect to the render server
	ctx := context.Background()
	log.Printf("Connecting to render server at %s...", *server)
	conn, _, err := websocket.Dial(ctx, *server, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(*maxImage)

	// Step 2: Submit the job
	data, err := fractal.EncodeJob(job)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send job: %w", err)
	}
	log.Printf("Submitted job: %s", output.Description(job))

	// Step 3: Follow progress and save images until the server closes
	saved := 0
	for {
		m, err := readMessage(ctx, conn)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			break
		}
		if err != nil {
			return err
		}

		switch m.Kind {
		case fractal.KindProgress:
			if m.Total > 0 {
				log.Printf("finished: %.1f%%", 100*float64(m.Done)/float64(m.Total))
			}
		case fractal.KindError:
			return fmt.Errorf("server: %s", m.Error)
		case fractal.KindImage:
			name, err := saveImage(ctx, conn, m, *outDir)
			if err != nil {
				return err
			}
			saved++
			log.Printf("%s image saved to %q", m.Role, name)
		default:
			log.Printf("ignoring message of kind %q", m.Kind)
		}
	}

	if saved == 0 {
		return errors.New("server closed the connection without sending an image")
	}
	return nil
}

func readMessage(ctx context.Context, conn *websocket.Conn) (fractal.Message, error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return fractal.Message{}, err
	}
	if typ != websocket.MessageText {
		return fractal.Message{}, fmt.Errorf("unexpected binary message of %d bytes", len(data))
	}
	return fractal.DecodeMessage(data)
}

// saveImage reads the binary message announced by m and writes it to dir.
func saveImage(ctx context.Context, conn *websocket.Conn, m fractal.Message, dir string) (string, error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("read %s image: %w", m.Role, err)
	}
	if typ != websocket.MessageBinary || len(data) != m.Size {
		return "", fmt.Errorf("%s image: got %d bytes, want %d", m.Role, len(data), m.Size)
	}

	suffix := ""
	if m.Role != fractal.RoleFinal {
		suffix = "_" + m.Role
	}
	return output.WriteFile(dir, suffix, data)
}
