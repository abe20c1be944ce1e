package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"devourer/internal/fileutil"
	"devourer/internal/services"
)

// Downloader streams URLs to destination paths through a shared HTTP client.
type Downloader struct {
	client *http.Client
}

// NewDownloader wraps the provided client; a nil client falls back to
// http.DefaultClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client}
}

// Download streams url into dest via a partial sibling and rename, so dest
// only ever exists fully written. Returns the byte count on success. A
// non-2xx status is a transient failure; nothing is left behind on error.
func (d *Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "build request", url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "request", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, services.Wrap(services.ErrTransient, "fetch", "request",
			fmt.Sprintf("%s returned status %d", url, resp.StatusCode), nil)
	}

	file, err := fileutil.CreatePartial(dest)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "fetch", "create destination", dest, err)
	}

	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		fileutil.DiscardPartial(dest)
		return 0, services.Wrap(services.ErrStorage, "fetch", "stream body", dest, err)
	}
	if err := fileutil.CommitPartial(dest); err != nil {
		fileutil.DiscardPartial(dest)
		return 0, services.Wrap(services.ErrStorage, "fetch", "commit", dest, err)
	}
	return written, nil
}

// Job names one URL/destination pair inside a DownloadAll batch.
type Job struct {
	URL  string
	Dest string
}

// DownloadAll fetches sibling media of a single item with at most workers
// goroutines. This bounded parallelism never touches the provider quota, so
// it does not interact with the rate limiter. The first error is returned
// after all workers drain; completed files stay in place.
func (d *Downloader) DownloadAll(ctx context.Context, jobs []Job, workers int) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan Job)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	var total int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				n, err := d.Download(ctx, job.URL, job.Dest)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				total += n
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()

	return total, firstErr
}
