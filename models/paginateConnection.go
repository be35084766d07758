package models

import (
	"fmt"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"gorm.io/gorm"
)

type Cursor interface {
	GetCursor() string
}

type Identifier interface {
	GetId() any
}

type Edge[N Cursor] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

// fetch results for pagination, cursor column must be unique
func FetchPagePureCursor[T Cursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) ([]Edge[T], *PageInfo, error) {

	nodes := make([]*T, 0)

	if cmpOperator == ">" {
		dbCtx = dbCtx.Order(cursorColumn)
	} else if cmpOperator == "<" {
		dbCtx = dbCtx.Order(cursorColumn + " DESC")
	}

	decodedCursor, err := DecodeCursor(after)
	if err != nil {
		return nil, nil, utils.NewValidationError(utils.ErrCodeInvalidInput, "invalid cursor")
	}
	if decodedCursor != "" {
		dbCtx = dbCtx.Where(cursorColumn+" "+cmpOperator+" ?", decodedCursor)
	}

	if err = dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, nil, err
	}

	edges, pageInfo := connectNodes(nodes, limit, func(node *T) string {
		return EncodeCursor((*node).GetCursor())
	})
	return edges, pageInfo, nil
}

type CompositeCursor interface {
	Cursor
	Identifier
}

// fetch results for pagination on a non-unique column, tie broken by id
func FetchPageCompositeCursor[T CompositeCursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) ([]Edge[T], *PageInfo, error) {

	nodes := make([]*T, 0)

	if cmpOperator == ">" {
		dbCtx = dbCtx.Order(cursorColumn + ", id")
	} else if cmpOperator == "<" {
		dbCtx = dbCtx.Order(cursorColumn + " DESC, id DESC")
	}

	decodedCursor, cursorId := DecodeCompositeCursor(after)
	if cursorId != "" {
		dbCtx = dbCtx.Where(
			// [1] = column, [2] = operator
			fmt.Sprintf("(%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?))", cursorColumn, cmpOperator),
			decodedCursor, decodedCursor, cursorId)
	}

	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, nil, err
	}

	edges, pageInfo := connectNodes(nodes, limit, func(node *T) string {
		return EncodeCompositeCursor((*node).GetCursor(), (*node).GetId())
	})
	return edges, pageInfo, nil
}

// connectNodes keeps the first limit nodes; the extra row only signals a next page.
func connectNodes[T Cursor](nodes []*T, limit int, encode func(*T) string) ([]Edge[T], *PageInfo) {
	hasNextPage := len(nodes) > limit
	if hasNextPage {
		nodes = nodes[:limit]
	}
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, Edge[T]{Node: node, Cursor: encode(node)})
	}

	if len(edges) == 0 {
		return edges, &PageInfo{HasNextPage: utils.NewFalse()}
	}
	return edges, &PageInfo{
		StartCursor: edges[0].Cursor,
		EndCursor:   edges[len(edges)-1].Cursor,
		HasNextPage: &hasNextPage,
	}
}
