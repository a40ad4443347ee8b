package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var (
	serverURL  = flag.String("url", "http://localhost:8080", "HTTP server base URL")
	grpcAddr   = flag.String("grpc-addr", "localhost:50051", "gRPC health address (empty to skip)")
	pdfFile    = flag.String("file", "", "PDF to translate")
	sourceLang = flag.String("source", "", "Source language (default: server's)")
	targetLang = flag.String("target", "", "Target language (default: server's)")
	outDir     = flag.String("out", ".", "Directory for the downloaded document")
	timeout    = flag.Duration("timeout", 30*time.Minute, "Overall timeout")
)

type jobStatus struct {
	ID              string `json:"job_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	ProgressMessage string `json:"progress_message"`
	Error           string `json:"error"`
}

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	if *pdfFile == "" {
		logger.Fatal("-file must be provided")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *grpcAddr != "" {
		checkHealth(ctx, logger)
	}

	logger.WithFields(logrus.Fields{
		"server": *serverURL,
		"file":   *pdfFile,
	}).Info("Uploading PDF...")
	jobID, err := upload(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Upload failed")
	}
	logger.WithField("job_id", jobID).Info("Job created")

	startTime := time.Now()
	final, err := follow(ctx, jobID, func(s jobStatus) {
		logger.WithFields(logrus.Fields{
			"status":  s.Status,
			"percent": s.ProgressPercent,
		}).Info(s.ProgressMessage)
	})
	if err != nil {
		logger.WithError(err).Fatal("Following job failed")
	}
	if final.Status != "completed" {
		logger.WithField("error", final.Error).Fatal("Translation failed")
	}

	preview, err := fetchPreview(ctx, jobID)
	if err != nil {
		logger.WithError(err).Warn("Preview unavailable")
	}

	path, err := download(ctx, jobID)
	if err != nil {
		logger.WithError(err).Fatal("Download failed")
	}

	separator := strings.Repeat("=", 80)
	fmt.Println()
	fmt.Println(separator)
	fmt.Println("SOURCE PREVIEW")
	fmt.Println(separator)
	for _, p := range preview {
		fmt.Println(p)
	}
	fmt.Println(separator)
	fmt.Printf("Saved: %s\n", path)

	logger.WithFields(logrus.Fields{
		"duration_seconds": time.Since(startTime).Seconds(),
	}).Info("Translation completed successfully")
}

func checkHealth(ctx context.Context, logger *logrus.Logger) {
	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Warn("Cannot create gRPC client")
		return
	}
	defer conn.Close()

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(hctx, &grpc_health_v1.HealthCheckRequest{Service: "pdftrans.Translator"})
	if err != nil {
		logger.WithError(err).Warn("Health check failed")
		return
	}
	logger.WithField("status", resp.GetStatus().String()).Info("Provider health")
}

func upload(ctx context.Context) (string, error) {
	f, err := os.Open(*pdfFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", filepath.Base(*pdfFile))
		if err == nil {
			_, err = io.Copy(fw, f)
		}
		for k, v := range map[string]string{"source_lang": *sourceLang, "target_lang": *targetLang} {
			if err == nil && v != "" {
				err = mw.WriteField(k, v)
			}
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *serverURL+"/api/v1/jobs", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body["error"])
	}
	return body["job_id"], nil
}

// follow reads the job's SSE stream until it ends and returns the last
// status received.
func follow(ctx context.Context, jobID string, onEvent func(jobStatus)) (jobStatus, error) {
	var last jobStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *serverURL+"/api/v1/jobs/"+jobID+"/events", nil)
	if err != nil {
		return last, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return last, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return last, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(data), &last); err != nil {
			return last, err
		}
		onEvent(last)
	}
	return last, scanner.Err()
}

func fetchPreview(ctx context.Context, jobID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *serverURL+"/api/v1/jobs/"+jobID+"/preview", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Paragraphs []string `json:"paragraphs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Paragraphs, nil
}

func download(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *serverURL+"/api/v1/jobs/"+jobID+"/download", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	name := jobID + ".docx"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	path := filepath.Join(*outDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}
