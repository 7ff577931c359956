package document

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = stderrors.New("document not found")

// Summary describes a stored document without its layers.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Layers    int       `json:"layers" bson:"-"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store persists documents. A conversion loads a document, mutates the
// in-memory copy, and saves it once, so a failed conversion leaves the stored
// document untouched.
type Store interface {
	Load(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
	Close() error
}
