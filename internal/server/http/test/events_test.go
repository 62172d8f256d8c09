package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/capture"
	"github.com/leshachaplin/mouselog/internal/domain"
)

// record plays a short scripted session through a full capture pipeline
// pointed at the running server and returns its session id.
func (i *IntegrationTestSuite) record(k, events int) string {
	rec := capture.New(capture.Config{
		Debounce:  time.Hour,
		Transport: capture.TransportConfig{BaseURL: i.baseURL},
	}, capture.StaticViewport{Width: 1440, Height: 900}, zerolog.Nop())
	defer rec.Close()

	start := time.UnixMilli(1700000000000 + int64(k)*1000)
	target := &capture.StaticElement{Tag: "DIV", Attrs: map[string]string{"id": fmt.Sprintf("box-%d", k)}, Text: "拖拽我"}
	for j := 0; j < events; j++ {
		typ := domain.MouseMove
		switch {
		case j == 1:
			typ = domain.DragStart
		case j == events-1:
			typ = domain.DragEnd
		case j > 1:
			typ = domain.Drag
		}
		_, err := rec.Handle(capture.RawEvent{
			Type:   typ,
			X:      j * 3,
			Y:      j * 4,
			At:     start.Add(time.Duration(j) * 16 * time.Millisecond),
			Target: target,
		})
		i.Require().NoError(err)
	}
	return rec.SessionID()
}

func (i *IntegrationTestSuite) TestLog_CaptureToFile() {
	cases := map[string]struct {
		sessions      int
		eventsPerSess int
	}{
		"ok - one session": {
			sessions:      1,
			eventsPerSess: 5,
		},
		"ok - concurrent sessions": {
			sessions:      20,
			eventsPerSess: 50,
		},
	}

	for name, tc := range cases {
		tc := tc
		i.Run(name, func() {
			before, err := i.eventLog.ReadAll(i.ctx)
			i.Require().NoError(err)

			// session ids are millisecond based
			sessionIDs := make([]string, tc.sessions)
			wg := &sync.WaitGroup{}
			for k := 0; k < tc.sessions; k++ {
				wg.Add(1)
				go func(k int) {
					defer wg.Done()
					time.Sleep(time.Duration(k) * 2 * time.Millisecond)
					sessionIDs[k] = i.record(k, tc.eventsPerSess)
				}(k)
			}
			wg.Wait()

			all, err := i.eventLog.ReadAll(i.ctx)
			i.Require().NoError(err)
			logged := all[len(before):]
			i.Require().Len(logged, tc.sessions*tc.eventsPerSess)

			// one batch per session, never interleaved with another batch
			for b := 0; b < tc.sessions; b++ {
				batch := logged[b*tc.eventsPerSess : (b+1)*tc.eventsPerSess]
				session := batch[0].SessionID
				dragStart := batch[1].EventID
				for j, e := range batch {
					i.Require().Equal(session, e.SessionID)
					i.Require().Equal(fmt.Sprintf("event_%s_%d", session, j), e.EventID)
					if j > 1 {
						i.Require().Equal(dragStart, *e.ParentEventID)
					}
				}
			}
		})
	}
}

func (i *IntegrationTestSuite) TestLog_RejectsInvalid() {
	res, err := http.Post(i.baseURL+"/api/mouse", "application/json", strings.NewReader(`[{"event_type":"click"}]`))
	i.Require().NoError(err)
	res.Body.Close()
	i.Require().Equal(http.StatusBadRequest, res.StatusCode)
}

func (i *IntegrationTestSuite) TestLog_Mirror() {
	if i.clickhouse == nil {
		i.T().Skip("mirror needs docker")
	}

	sessionID := i.record(99, 12)

	i.Require().Eventually(func() bool {
		summary, err := i.clickhouse.SessionSummary(context.Background(), sessionID)
		return err == nil && summary.Events == 12
	}, time.Minute, 500*time.Millisecond)
}
