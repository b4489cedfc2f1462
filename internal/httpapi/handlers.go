package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bidboard/internal/credential"
	"bidboard/internal/snapshot"
	"bidboard/internal/store"
	"bidboard/internal/upstream"
)

func (s *Server) handleBidding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, start, end := q.Get("date"), q.Get("start"), q.Get("end")
	began := s.now()

	res, err := s.snapshots.Query(r.Context(), date, start, end)

	evt := &store.QueryEvent{
		Time:      began,
		RequestID: RequestIDFrom(r.Context()),
		Date:      date,
		Start:     start,
		End:       end,
	}
	defer func() {
		evt.Duration = s.now().Sub(began)
		s.record(r.Context(), func(ctx context.Context) error { return s.recorder.RecordQuery(ctx, evt) })
	}()

	if err != nil {
		evt.Status = statusFor(err)
		evt.Error = err.Error()
		if evt.Status == http.StatusInternalServerError {
			s.log.Error("snapshot query failed", "date", date, "start", start, "end", end, "error", err)
			s.writeError(w, evt.Status, "failed to read snapshot data")
			return
		}
		s.writeError(w, evt.Status, err.Error())
		return
	}

	evt.Status = http.StatusOK
	evt.Returned = len(res.Timestamps)
	evt.Dropped = res.Dropped
	s.writeJSON(w, res)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	var dates []string
	if s.index != nil {
		dates = s.index.Dates()
	} else {
		var err error
		dates, err = snapshot.ListDates(s.snapshots.Dir())
		if err != nil {
			s.log.Error("listing snapshot dates", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to list dates")
			return
		}
	}
	if dates == nil {
		dates = []string{}
	}
	s.writeJSON(w, DatesResponse{Dates: dates})
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	began := s.now()
	evt := &store.UpstreamEvent{Time: began, RequestID: RequestIDFrom(r.Context())}
	defer func() {
		evt.Duration = s.now().Sub(began)
		s.record(r.Context(), func(ctx context.Context) error { return s.recorder.RecordUpstream(ctx, evt) })
	}()

	var (
		body []byte
		err  = upstream.ErrNotConfigured
	)
	if s.upstream != nil {
		body, err = s.upstream.FetchRealtime(r.Context())
	}
	if err != nil {
		evt.Status = http.StatusInternalServerError
		evt.Error = err.Error()

		msg := "realtime data unavailable"
		switch {
		case errors.Is(err, upstream.ErrNotConfigured):
			msg = "upstream not configured"
		case errors.Is(err, upstream.ErrMalformed):
			msg = "realtime data malformed"
		}
		s.log.Error("realtime fetch failed", "error", err)
		writeJSONStatus(s.log, w, http.StatusInternalServerError, RealtimeErrorResponse{Error: msg, Data: []any{}})
		return
	}

	evt.Status = http.StatusOK
	evt.Bytes = len(body)
	w.Header().Set("Content-Type", jsonContentType)
	w.Write(body)
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	info, err := credential.Load(s.passwordFile)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "password file not found")
			return
		}
		s.log.Error("reading password file", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read password file")
		return
	}
	s.writeJSON(w, info.Projection())
}

func (s *Server) handlePasswordHash(w http.ResponseWriter, r *http.Request) {
	hash, err := credential.LoadHash(s.passwordFile)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "password file not found")
		case errors.Is(err, credential.ErrNoHash):
			s.writeError(w, http.StatusNotFound, "password hash not found")
		default:
			s.log.Error("reading password hash", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to read password file")
		}
		return
	}
	s.writeJSON(w, HashResponse{Hash: hash})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: s.now().Format(time.RFC3339),
		Service:   ServiceName,
	})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.static == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.static.ServeHTTP(w, r)
}

// record writes an audit event. The request may already be cancelled, so
// the write gets its own short deadline.
func (s *Server) record(parent context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log.Warn("recording audit event", "error", err)
	}
}
