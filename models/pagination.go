package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

func pageLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return defaultPageLimit
	}
	if *limit > maxPageLimit {
		return maxPageLimit
	}
	return *limit
}

func DecodeCursor(cursor *string) (string, error) {
	decodedCursor := ""
	if cursor != nil {
		b, err := base64.StdEncoding.DecodeString(*cursor)
		if err != nil {
			return decodedCursor, err
		}
		decodedCursor = string(b)
	}
	return decodedCursor, nil
}

// DecodeCompositeCursor splits "value|id"; malformed cursors restart from the first page.
func DecodeCompositeCursor(cursor *string) (string, string) {
	if cursor == nil || *cursor == "" {
		return "", ""
	}

	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return "", ""
	}

	idx := strings.LastIndex(string(decoded), "|")
	if idx < 0 {
		return "", ""
	}
	return string(decoded[:idx]), string(decoded[idx+1:])
}

func EncodeCursor(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func EncodeCompositeCursor(value string, id any) string {
	cursor := fmt.Sprintf("%s|%v", value, id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}
