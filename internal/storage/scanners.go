package storage

import (
	"database/sql"
	"fmt"
)

// Null scanner helpers - reduce repetitive nil-checking code

func scanNullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanConnection scans a connection row
func scanConnection(row scanner) (*Connection, error) {
	var c Connection
	var generation int64
	var startedAt string
	var opened int
	var closedAt, closeErr sql.NullString
	if err := row.Scan(&c.ID, &c.ClientID, &generation, &c.URL, &startedAt, &opened, &closedAt, &closeErr); err != nil {
		return nil, err
	}
	c.Generation = uint64(generation)
	c.StartedAt = parseTimestamp(startedAt)
	c.Opened = opened != 0
	if closedAt.Valid {
		t := parseTimestamp(closedAt.String)
		c.ClosedAt = &t
	}
	c.CloseError = scanNullStringValue(closeErr)
	return &c, nil
}

// scanFrame scans a frame row, decompressing the raw payload
func scanFrame(row scanner) (*Frame, error) {
	var f Frame
	var receivedAt string
	var msgType, change, errText sql.NullString
	var raw []byte
	if err := row.Scan(&f.ID, &f.ConnectionID, &receivedAt, &msgType, &f.Outcome, &change, &errText, &f.RawSize, &raw); err != nil {
		return nil, err
	}
	f.ReceivedAt = parseTimestamp(receivedAt)
	f.MessageType = scanNullStringValue(msgType)
	f.Change = scanNullStringValue(change)
	f.Error = scanNullStringValue(errText)
	if len(raw) > 0 {
		data, err := decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.ID, err)
		}
		f.Raw = data
	}
	return &f, nil
}
