package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

var (
	ErrNoTradeList    = errors.New("no 'ex_data.list' or 'data.list' found in JSON")
	ErrBrokerResponse = errors.New("broker returned an error")
)

// listContainers are the envelope keys that may hold the trade list, in the
// order they are checked. Exported files use ex_data, the live API data.
var listContainers = []string{"ex_data", "data"}

// ParseEnvelope extracts the raw trade list from a broker JSON document.
func ParseEnvelope(content []byte) ([]domain.RawTrade, error) {
	var top map[string]json.RawMessage
	if err := decode(content, &top); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	for _, key := range listContainers {
		container, ok := top[key]
		if !ok {
			continue
		}

		var inner map[string]json.RawMessage
		if err := decode(container, &inner); err != nil {
			continue
		}

		list, ok := inner["list"]
		if !ok {
			continue
		}

		var trades []domain.RawTrade
		if err := decode(list, &trades); err != nil {
			return nil, fmt.Errorf("invalid %s.list: %w", key, err)
		}
		return trades, nil
	}

	return nil, ErrNoTradeList
}

type brokerStatus struct {
	ErrorCode any    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func checkStatus(content []byte) error {
	var status brokerStatus
	if err := decode(content, &status); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if status.ErrorCode == nil {
		return nil
	}
	if code := str(status.ErrorCode); code != "0" {
		msg := status.ErrorMsg
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: %s (code %s)", ErrBrokerResponse, msg, code)
	}
	return nil
}

// ParseHistoryResponse validates a live trade history response before
// extracting its trade list.
func ParseHistoryResponse(content []byte) ([]domain.RawTrade, error) {
	if err := checkStatus(content); err != nil {
		return nil, err
	}
	return ParseEnvelope(content)
}

// ParsePositions builds the instrument code -> name mapping from a position
// response. Entries without a code or a name are skipped.
func ParsePositions(content []byte) (map[string]string, error) {
	if err := checkStatus(content); err != nil {
		return nil, err
	}

	var resp struct {
		ExData struct {
			Position []map[string]any `json:"position"`
		} `json:"ex_data"`
	}
	if err := decode(content, &resp); err != nil {
		return nil, fmt.Errorf("invalid position payload: %w", err)
	}

	names := make(map[string]string, len(resp.ExData.Position))
	for _, pos := range resp.ExData.Position {
		code, name := str(pos["code"]), str(pos["name"])
		if code != "" && name != "" {
			names[code] = name
		}
	}
	return names, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func str(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		return val.String()
	}
	return cast.ToString(v)
}
