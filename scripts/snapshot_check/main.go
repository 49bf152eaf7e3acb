package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/canto-lessons/internal/models"
)

const maxSnapshotBytes = 64 << 20

func main() {
	var (
		localPath string
		remoteURL string
		timeout   time.Duration
	)

	flag.StringVar(&localPath, "local", "student_data.json", "Path to the exported classroom snapshot")
	flag.StringVar(&remoteURL, "remote", "http://localhost:8080/student_data.json", "URL of the published classroom snapshot")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var local, remote models.ClassroomSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", localPath, err)
		}
		return decodeSnapshot(raw, localPath, &local)
	})
	g.Go(func() error {
		raw, err := fetch(gctx, remoteURL)
		if err != nil {
			return err
		}
		return decodeSnapshot(raw, remoteURL, &remote)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("snapshot check failed: %v", err)
	}

	report := compareSnapshots(local, remote)
	report.print(os.Stdout)
	if !report.consistent() {
		os.Exit(1)
	}
}

func fetch(ctx context.Context, rawURL string) ([]byte, error) {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	target := rawURL + sep + "t=" + strconv.FormatInt(time.Now().UnixNano(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %s", rawURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
}

func decodeSnapshot(raw []byte, source string, dest *models.ClassroomSnapshot) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s is not a classroom snapshot: %w", source, err)
	}
	return nil
}
