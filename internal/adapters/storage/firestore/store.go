package firestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// maxChunkBytes keeps every chunk document well under Firestore's 1 MiB
// document limit.
const maxChunkBytes = 900 * 1024

const (
	blobImage = "image"
	blobAudio = "audio"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (KEEPSAKE_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) keepsakesCol() *firestore.CollectionRef {
	return s.client.Collection("keepsakes")
}

func (s *Store) keepsakeDoc(id domain.KeepsakeID) *firestore.DocumentRef {
	return s.keepsakesCol().Doc(string(id))
}

// Image and audio payloads live in keepsakes/{id}/chunks, split into
// documents of at most maxChunkBytes.
func chunkRef(parent *firestore.DocumentRef, field string, index int) *firestore.DocumentRef {
	return parent.Collection("chunks").Doc(fmt.Sprintf("%s-%04d", field, index))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type citationDoc struct {
	Title string `firestore:"title"`
	URI   string `firestore:"uri"`
}

type keepsakeDoc struct {
	SessionID    string        `firestore:"session_id"`
	Name         string        `firestore:"name"`
	Relationship string        `firestore:"relationship"`
	Detail       string        `firestore:"detail"`
	Mood         string        `firestore:"mood"`
	Letter       string        `firestore:"letter"`
	ImagePrompt  string        `firestore:"image_prompt"`
	ImageChunks  int           `firestore:"image_chunks"`
	AudioChunks  int           `firestore:"audio_chunks"`
	Citations    []citationDoc `firestore:"citations"`
	CreatedAt    time.Time     `firestore:"created_at"`
	UpdatedAt    time.Time     `firestore:"updated_at"`
}

type chunkDoc struct {
	Field string `firestore:"field"`
	Index int    `firestore:"index"`
	Data  string `firestore:"data"`
}

func splitBlob(field, data string) []chunkDoc {
	var out []chunkDoc
	for i := 0; len(data) > 0; i++ {
		n := min(len(data), maxChunkBytes)
		out = append(out, chunkDoc{Field: field, Index: i, Data: data[:n]})
		data = data[n:]
	}
	return out
}

func joinBlob(chunks []chunkDoc, field string) string {
	var parts []chunkDoc
	for _, c := range chunks {
		if c.Field == field {
			parts = append(parts, c)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })

	var b strings.Builder
	for _, c := range parts {
		b.WriteString(c.Data)
	}
	return b.String()
}

// toDoc splits k into its main document and the chunks holding image and audio.
func toDoc(k *domain.Keepsake) (keepsakeDoc, []chunkDoc) {
	cites := make([]citationDoc, 0, len(k.Result.Citations))
	for _, c := range k.Result.Citations {
		cites = append(cites, citationDoc{Title: c.Title, URI: c.URI})
	}

	image := splitBlob(blobImage, k.Result.ImageURL)
	audio := splitBlob(blobAudio, k.Result.AudioData)

	doc := keepsakeDoc{
		SessionID:    string(k.SessionID),
		Name:         k.Input.Name,
		Relationship: k.Input.Relationship,
		Detail:       k.Input.Detail,
		Mood:         string(k.Input.Mood),
		Letter:       k.Result.Letter,
		ImagePrompt:  k.Result.ImagePrompt,
		ImageChunks:  len(image),
		AudioChunks:  len(audio),
		Citations:    cites,
		CreatedAt:    k.CreatedAt,
		UpdatedAt:    k.UpdatedAt,
	}
	return doc, append(image, audio...)
}

func fromDoc(id string, doc keepsakeDoc, chunks []chunkDoc) *domain.Keepsake {
	var cites []domain.Citation
	for _, c := range doc.Citations {
		cites = append(cites, domain.Citation{Title: c.Title, URI: c.URI})
	}
	return &domain.Keepsake{
		ID:        domain.KeepsakeID(id),
		SessionID: domain.SessionID(doc.SessionID),
		Input: domain.MemoryInput{
			Name:         doc.Name,
			Relationship: doc.Relationship,
			Detail:       doc.Detail,
			Mood:         domain.Mood(doc.Mood),
		},
		Result: domain.GenerationResult{
			Letter:      doc.Letter,
			ImagePrompt: doc.ImagePrompt,
			ImageURL:    joinBlob(chunks, blobImage),
			AudioData:   joinBlob(chunks, blobAudio),
			Citations:   cites,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// ─────────────────────────────────────────
// KeepsakeStore implementation
// ─────────────────────────────────────────

// SaveKeepsake writes the chunks first and the main document last, so a
// reader never sees chunk counts whose chunks are missing.
func (s *Store) SaveKeepsake(ctx context.Context, k *domain.Keepsake) error {
	doc, chunks := toDoc(k)
	ref := s.keepsakeDoc(k.ID)

	for _, c := range chunks {
		if _, err := chunkRef(ref, c.Field, c.Index).Set(ctx, c); err != nil {
			return fmt.Errorf("firestore SaveKeepsake chunk %s-%d: %w", c.Field, c.Index, err)
		}
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveKeepsake: %w", err)
	}
	return nil
}

func (s *Store) GetKeepsake(ctx context.Context, id domain.KeepsakeID) (*domain.Keepsake, error) {
	snap, err := s.keepsakeDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrKeepsakeNotFound
		}
		return nil, fmt.Errorf("firestore GetKeepsake: %w", err)
	}
	return s.load(ctx, snap)
}

func (s *Store) ListKeepsakes(ctx context.Context, limit int) ([]*domain.Keepsake, error) {
	q := s.keepsakesCol().OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Keepsake
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListKeepsakes: %w", err)
		}

		k, err := s.load(ctx, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// load decodes the main document and fetches the chunks it references.
func (s *Store) load(ctx context.Context, snap *firestore.DocumentSnapshot) (*domain.Keepsake, error) {
	var doc keepsakeDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode keepsakeDoc: %w", err)
	}

	var refs []*firestore.DocumentRef
	for i := 0; i < doc.ImageChunks; i++ {
		refs = append(refs, chunkRef(snap.Ref, blobImage, i))
	}
	for i := 0; i < doc.AudioChunks; i++ {
		refs = append(refs, chunkRef(snap.Ref, blobAudio, i))
	}
	if len(refs) == 0 {
		return fromDoc(snap.Ref.ID, doc, nil), nil
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("firestore load chunks: %w", err)
	}
	chunks := make([]chunkDoc, 0, len(snaps))
	for _, cs := range snaps {
		if !cs.Exists() {
			return nil, fmt.Errorf("firestore load chunks: missing %s", cs.Ref.ID)
		}
		var c chunkDoc
		if err := cs.DataTo(&c); err != nil {
			return nil, fmt.Errorf("decode chunkDoc: %w", err)
		}
		chunks = append(chunks, c)
	}
	return fromDoc(snap.Ref.ID, doc, chunks), nil
}
