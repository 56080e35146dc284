package checkout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// page is the distilled view of one protocol response: final URL after
// redirects, status, body.
type page struct {
	Status int
	URL    string
	Body   []byte
}

func readPage(resp *http.Response) (*page, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("checkout: read page: %w", err)
	}
	return &page{
		Status: resp.StatusCode,
		URL:    resp.Request.URL.String(),
		Body:   body,
	}, nil
}

// checkpointMsg carries what the watcher extracted from the checkpoint page.
// Err is set when the page was served but the token or sitekey could not be
// extracted — no safe continuation exists then.
type checkpointMsg struct {
	Token   string
	SiteKey string
	Data    string
	URL     string
	Err     error
}

// watchCheckpoint polls the checkpoint endpoint concurrently with the main
// submission flow, because the remote side may assert a checkpoint at any
// point after checkout is requested. The first served page is extracted and
// delivered as one message; then the goroutine exits. Cancel ctx to stop a
// watcher that never sees a checkpoint.
func (f *Flow) watchCheckpoint(ctx context.Context) <-chan checkpointMsg {
	ch := make(chan checkpointMsg, 1)
	u := f.base.ResolveReference(&url.URL{Path: f.config.Paths.Checkpoint}).String()

	go func() {
		ticker := time.NewTicker(f.config.CheckpointPoll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pg, err := f.getPage(ctx, u)
			if err != nil || pg.Status != http.StatusOK || len(pg.Body) == 0 {
				continue
			}
			ch <- checkpointFromPage(pg)
			return
		}
	}()
	return ch
}

// checkpointFromPage extracts the checkpoint sub-protocol inputs from a
// served checkpoint page.
func checkpointFromPage(pg *page) checkpointMsg {
	token := ExtractToken(pg.Body)
	sitekey, data := ExtractChallenge(pg.Body)
	if token == "" || sitekey == "" {
		return checkpointMsg{URL: pg.URL, Err: &ErrProtocolMismatch{
			State:  StateCheckpointChallenge,
			Status: pg.Status,
			URL:    pg.URL,
			Detail: "checkpoint missing token or challenge details",
		}}
	}
	return checkpointMsg{Token: token, SiteKey: sitekey, Data: data, URL: pg.URL}
}
