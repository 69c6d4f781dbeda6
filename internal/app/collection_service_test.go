package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/optional"
)

func TestCreateCollectionAppliesDefaultsAndSiblingOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()
	ctx := context.Background()

	first, err := svc.Create(ctx, 1, CreateCollectionInput{Name: "  Papers  "})
	require.NoError(t, err)
	assert.Equal(t, "Papers", first.Name)
	assert.Equal(t, model.DefaultCollectionColor, first.Color)
	assert.Equal(t, model.DefaultCollectionIcon, first.Icon)
	assert.Equal(t, 0, first.SortOrder)

	second, err := svc.Create(ctx, 1, CreateCollectionInput{Name: "Books", Color: "#112233", Icon: "📚"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.SortOrder)

	child, err := svc.Create(ctx, 1, CreateCollectionInput{Name: "ML", ParentID: &first.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, child.SortOrder)
}

func TestCreateCollectionValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateCollectionInput{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, 1, CreateCollectionInput{Name: "x", Color: "red"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	other := f.seedCollection(t, 2, "Theirs", nil)
	_, err = svc.Create(ctx, 1, CreateCollectionInput{Name: "x", ParentID: &other.ID})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpdateCollectionRejectsMoveUnderDescendant(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()
	ctx := context.Background()

	root := f.seedCollection(t, 1, "Root", nil)
	child := f.seedCollection(t, 1, "Child", &root.ID)
	grandchild := f.seedCollection(t, 1, "Grandchild", &child.ID)
	sibling := f.seedCollection(t, 1, "Sibling", nil)

	_, err := svc.Update(ctx, 1, root.ID, UpdateCollectionInput{ParentID: optional.Set(grandchild.ID)})
	assert.ErrorIs(t, err, ErrCircularReference)

	_, err = svc.Update(ctx, 1, root.ID, UpdateCollectionInput{ParentID: optional.Set(root.ID)})
	assert.ErrorIs(t, err, ErrCircularReference)

	moved, err := svc.Update(ctx, 1, grandchild.ID, UpdateCollectionInput{ParentID: optional.Set(sibling.ID)})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, sibling.ID, *moved.ParentID)

	detached, err := svc.Update(ctx, 1, child.ID, UpdateCollectionInput{ParentID: optional.Null()})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)

	_, err = svc.Update(ctx, 1, child.ID, UpdateCollectionInput{})
	assert.ErrorIs(t, err, ErrNoUpdateFields)

	_, err = svc.Update(ctx, 2, child.ID, UpdateCollectionInput{Name: strPtr("mine")})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestGetCollectionBuildsBreadcrumb(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()

	root := f.seedCollection(t, 1, "Work", nil)
	child := f.seedCollection(t, 1, "Reports", &root.ID)
	f.seedDocument(t, docSeed{name: "q1", size: mb, collection: &child.ID})

	detail, err := svc.Get(context.Background(), 1, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Work / Reports", detail.PathNames)
	require.Len(t, detail.Path, 2)
	assert.Equal(t, root.ID, detail.Path[0].ID)
	assert.Equal(t, int64(1), detail.DocumentCount)
}

func TestListCollectionsReturnsTreeWithCounts(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()

	root := f.seedCollection(t, 1, "Root", nil)
	child := f.seedCollection(t, 1, "Child", &root.ID)
	f.seedDocument(t, docSeed{name: "a", size: mb, collection: &child.ID})
	f.seedDocument(t, docSeed{name: "b", size: mb, collection: &child.ID})
	f.seedDocument(t, docSeed{name: "c", size: mb})

	result, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, result.Collections, 2)
	require.Len(t, result.Tree, 1)
	assert.Equal(t, root.ID, result.Tree[0].ID)
	require.Len(t, result.Tree[0].Children, 1)
	assert.Equal(t, int64(2), result.Tree[0].Children[0].DocumentCount)
}

func TestDeleteCollectionRules(t *testing.T) {
	ctx := context.Background()

	t.Run("children block deletion even with a target", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		root := f.seedCollection(t, 1, "R", nil)
		f.seedCollection(t, 1, "C", &root.ID)

		_, err := svc.Delete(ctx, 1, root.ID, &DeleteTarget{})
		assert.ErrorIs(t, err, ErrCollectionHasChildren)
	})

	t.Run("empty collection needs no target", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		c := f.seedCollection(t, 1, "Empty", nil)

		result, err := svc.Delete(ctx, 1, c.ID, nil)
		require.NoError(t, err)
		assert.Zero(t, result.MovedDocuments)

		_, err = svc.Get(ctx, 1, c.ID)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("documents without target are rejected", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		c := f.seedCollection(t, 1, "Full", nil)
		f.seedDocument(t, docSeed{name: "a", size: mb, collection: &c.ID})

		_, err := svc.Delete(ctx, 1, c.ID, nil)
		assert.ErrorIs(t, err, ErrCollectionNotEmpty)
	})

	t.Run("documents move to root", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		c := f.seedCollection(t, 1, "Full", nil)
		doc := f.seedDocument(t, docSeed{name: "a", size: mb, collection: &c.ID})

		result, err := svc.Delete(ctx, 1, c.ID, &DeleteTarget{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.MovedDocuments)

		got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
		require.NoError(t, err)
		assert.Nil(t, got.CollectionID)
	})

	t.Run("documents move to another collection", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		c := f.seedCollection(t, 1, "Old", nil)
		dest := f.seedCollection(t, 1, "New", nil)
		doc := f.seedDocument(t, docSeed{name: "a", size: mb, collection: &c.ID})

		_, err := svc.Delete(ctx, 1, c.ID, &DeleteTarget{ID: &c.ID})
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.Delete(ctx, 1, c.ID, &DeleteTarget{ID: uintPtr(999)})
		assert.ErrorIs(t, err, ErrCollectionNotFound)

		_, err = svc.Delete(ctx, 1, c.ID, &DeleteTarget{ID: &dest.ID})
		require.NoError(t, err)
		got, err := f.documents.GetByIDAndUserID(ctx, doc.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, got.CollectionID)
		assert.Equal(t, dest.ID, *got.CollectionID)
	})

	t.Run("soft-deleted documents are detached", func(t *testing.T) {
		f := newFixture(t)
		svc := f.collectionService()
		c := f.seedCollection(t, 1, "Trash", nil)
		doc := f.seedDocument(t, docSeed{name: "a", size: mb, collection: &c.ID})
		_, err := f.documents.SoftDelete(ctx, 1, doc.ID)
		require.NoError(t, err)

		_, err = svc.Delete(ctx, 1, c.ID, nil)
		require.NoError(t, err)
		got, err := f.documents.GetAnyByIDAndUserID(ctx, doc.ID, 1)
		require.NoError(t, err)
		assert.Nil(t, got.CollectionID)
	})
}

func TestReorderCollectionsCountsMatches(t *testing.T) {
	f := newFixture(t)
	svc := f.collectionService()
	ctx := context.Background()
	a := f.seedCollection(t, 1, "A", nil)
	b := f.seedCollection(t, 1, "B", nil)

	n, err := svc.Reorder(ctx, 1, []ReorderItem{{ID: a.ID, Order: 5}, {ID: b.ID, Order: 1}, {ID: 999, Order: 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list.Tree, 2)
	assert.Equal(t, b.ID, list.Tree[0].ID)

	_, err = svc.Reorder(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
