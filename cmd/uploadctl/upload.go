package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newUploadCmd() *cobra.Command {
	var chunkSize int64
	var parallel int

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file in chunks and complete the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), args[0], chunkSize, parallel)
		},
	}

	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 5*1024*1024, "chunk size in bytes")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "number of concurrent chunk uploads")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <sessionId>",
		Short: "Show status and progress of an upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.UploadStatusResponse
			if err := getJSON(cmd.Context(), "/api/files/chunk/status/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Printf("status: %s, progress: %d%%\n", resp.Status, resp.Progress)
			return nil
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <sessionId>",
		Short: "Cancel an upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.ChunkUploadCancelResponse
			if err := postJSON(cmd.Context(), "/api/files/chunk/cancel/"+args[0], nil, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func runUpload(ctx context.Context, path string, chunkSize int64, parallel int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	totalSize := info.Size()
	totalChunks := int32((totalSize + chunkSize - 1) / chunkSize)
	if totalChunks == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	var startResp models.ChunkUploadStartResponse
	err = postJSON(ctx, "/api/files/chunk/start", models.ChunkUploadStartRequest{
		FileName:    filepath.Base(path),
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
	}, &startResp)
	if err != nil {
		return fmt.Errorf("start upload: %w", err)
	}

	fmt.Printf("session %s: uploading %d chunks\n", startResp.SessionId, totalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := int32(0); i < totalChunks; i++ {
		g.Go(func() error {
			data := make([]byte, chunkSize)
			n, err := f.ReadAt(data, int64(i)*chunkSize)
			if err != nil && err != io.EOF {
				return fmt.Errorf("read chunk %d: %w", i, err)
			}
			data = data[:n]

			var resp models.ChunkUploadResponse
			err = postJSON(gctx, "/api/files/chunk/upload", models.ChunkUploadRequest{
				SessionId:  startResp.SessionId,
				ChunkIndex: i,
				ChunkData:  data,
				ChunkSize:  int64(n),
			}, &resp)
			if err != nil {
				return fmt.Errorf("upload chunk %d: %w", i, err)
			}

			fmt.Printf("chunk %d uploaded, progress %d%%\n", i, resp.Progress)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var completeResp models.ChunkUploadCompleteResponse
	if err := postJSON(ctx, "/api/files/chunk/complete/"+startResp.SessionId, nil, &completeResp); err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}

	if !completeResp.Success {
		return fmt.Errorf("%s (failed chunks: %v)", completeResp.Message, completeResp.FailedChunks)
	}

	fmt.Printf("upload complete, file id: %s\n", completeResp.FileId)
	return nil
}

func postJSON(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverAddr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return doJSON(req, out)
}

func getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverAddr+path, nil)
	if err != nil {
		return err
	}

	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
