package api

import (
	"context"

	"github.com/yumyai/structable/pkg/model"
)

// CDR3Request is the payload of a sequence search.
type CDR3Request struct {
	CDR3      string `json:"cdr3"`
	Substring bool   `json:"substring"`
	Gene      string `json:"gene"`
	Top       int    `json:"top"`
}

type MembersRequest struct {
	CID    string `json:"cid"`
	Format string `json:"format"`
}

type MembersResponse struct {
	Link string `json:"link"`
}

type AvailabilityResponse struct {
	Structures []string `json:"structures"`
	Motifs     []string `json:"motifs"`
}

// Source is the opaque backend collaborator. Implementations normalize the
// wire shapes, so callers only ever see canonical entities.
type Source interface {
	Metadata(ctx context.Context) (*model.Metadata, error)
	Filter(ctx context.Context, filter model.TreeFilter) ([]*model.Epitope, error)
	SearchCDR3(ctx context.Context, req CDR3Request) (*model.CDR3SearchResult, error)
	Members(ctx context.Context, req MembersRequest) (*MembersResponse, error)
	Availability(ctx context.Context) (*AvailabilityResponse, error)
}
