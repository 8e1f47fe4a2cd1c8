package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/ernie/range-dashboard/internal/transport"
)

const journalWriteTimeout = 2 * time.Second

// Journal records sync client activity into a Store. Write failures are
// logged and never reach the caller.
type Journal struct {
	store    *Store
	clientID string
	logger   *log.Logger
	now      func() time.Time
}

// NewJournal creates a journal writing to store on behalf of clientID
func NewJournal(store *Store, clientID string, logger *log.Logger) *Journal {
	if logger == nil {
		logger = log.Default()
	}
	return &Journal{store: store, clientID: clientID, logger: logger, now: time.Now}
}

func (j *Journal) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), journalWriteTimeout)
}

func (j *Journal) connection(info transport.ConnInfo) *Connection {
	return &Connection{
		ID:         info.ID.String(),
		ClientID:   j.clientID,
		Generation: info.Generation,
		URL:        info.URL,
		StartedAt:  j.now(),
		Opened:     info.Opened,
	}
}

// ConnectionOpened records a successful dial
func (j *Journal) ConnectionOpened(info transport.ConnInfo) {
	ctx, cancel := j.ctx()
	defer cancel()
	if err := j.store.StartConnection(ctx, j.connection(info)); err != nil {
		j.logger.Printf("Journal: %v", err)
	}
}

// ConnectionClosed records the end of a connection attempt. Failed dials
// were never opened, so their row is created here.
func (j *Journal) ConnectionClosed(info transport.ConnInfo, err error) {
	ctx, cancel := j.ctx()
	defer cancel()
	if !info.Opened {
		if werr := j.store.StartConnection(ctx, j.connection(info)); werr != nil {
			j.logger.Printf("Journal: %v", werr)
			return
		}
	}
	var reason string
	if err != nil {
		reason = err.Error()
	}
	if werr := j.store.CloseConnection(ctx, info.ID.String(), j.now(), reason); werr != nil {
		j.logger.Printf("Journal: %v", werr)
	}
}

// FrameApplied records a merged message and, for hits, its feed line
func (j *Journal) FrameApplied(info transport.ConnInfo, frame []byte, msg protocol.Message, change mirror.Change) {
	ctx, cancel := j.ctx()
	defer cancel()
	now := j.now()
	err := j.store.RecordFrame(ctx, &Frame{
		ConnectionID: info.ID.String(),
		ReceivedAt:   now,
		MessageType:  msg.Type(),
		Outcome:      OutcomeApplied,
		Change:       change.String(),
		RawSize:      len(frame),
	})
	if err != nil {
		j.logger.Printf("Journal: %v", err)
		return
	}
	if hit, ok := msg.(protocol.Hit); ok {
		line := &FeedLine{ConnectionID: info.ID.String(), At: now, Text: hit.FeedText()}
		if err := j.store.RecordFeed(ctx, line); err != nil {
			j.logger.Printf("Journal: %v", err)
		}
	}
}

// FrameRejected keeps the raw bytes of a frame that could not be applied
func (j *Journal) FrameRejected(info transport.ConnInfo, frame []byte, reason error) {
	ctx, cancel := j.ctx()
	defer cancel()
	f := &Frame{
		ConnectionID: info.ID.String(),
		ReceivedAt:   j.now(),
		Outcome:      OutcomeRejected,
		RawSize:      len(frame),
		Raw:          frame,
	}
	if reason != nil {
		f.Error = reason.Error()
	}
	var de *protocol.DecodeError
	if errors.As(reason, &de) {
		f.MessageType = de.Type
	}
	if err := j.store.RecordFrame(ctx, f); err != nil {
		j.logger.Printf("Journal: %v", err)
	}
}

// FrameStale records a frame that arrived on a superseded connection
func (j *Journal) FrameStale(info transport.ConnInfo, frame []byte) {
	ctx, cancel := j.ctx()
	defer cancel()
	err := j.store.RecordFrame(ctx, &Frame{
		ConnectionID: info.ID.String(),
		ReceivedAt:   j.now(),
		Outcome:      OutcomeStale,
		RawSize:      len(frame),
	})
	if err != nil {
		j.logger.Printf("Journal: %v", err)
	}
}
