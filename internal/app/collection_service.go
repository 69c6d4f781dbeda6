package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"pdfshelf/internal/model"
	"pdfshelf/internal/pkg/colltree"
	"pdfshelf/internal/pkg/optional"
	"pdfshelf/internal/repository"
)

type CollectionService struct {
	collectionRepo *repository.CollectionRepository
	documentRepo   *repository.DocumentRepository
}

func NewCollectionService(collectionRepo *repository.CollectionRepository, documentRepo *repository.DocumentRepository) *CollectionService {
	return &CollectionService{collectionRepo: collectionRepo, documentRepo: documentRepo}
}

type CreateCollectionInput struct {
	Name        string
	Description string
	Color       string
	Icon        string
	ParentID    *uint
}

type UpdateCollectionInput struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	ParentID    optional.ID
	Order       *int
}

type ReorderItem struct {
	ID    uint `json:"id"`
	Order int  `json:"order"`
}

// DeleteTarget says where a deleted collection's documents go. Nil means no
// reassignment; a Target with nil ID means "no collection".
type DeleteTarget struct {
	ID *uint
}

type CollectionView struct {
	model.Collection
	DocumentCount int64 `json:"document_count"`
}

type CollectionListResult struct {
	Collections []CollectionView `json:"collections"`
	Tree        []*colltree.Node `json:"tree"`
}

type CollectionDetail struct {
	model.Collection
	DocumentCount int64              `json:"document_count"`
	Path          []model.Collection `json:"path"`
	PathNames     string             `json:"path_names"`
}

type CollectionDeleteResult struct {
	MovedDocuments int64 `json:"moved_documents"`
}

func validateCollectionFields(name, description, color, icon string) error {
	return validation.Errors{
		"name":        validation.Validate(name, validation.Required, validation.RuneLength(1, 100)),
		"description": validation.Validate(description, validation.RuneLength(0, 500)),
		"color":       validation.Validate(color, validation.Required, validation.Match(hexColor).Error("must be a hex color like #4f46e5")),
		"icon":        validation.Validate(icon, validation.Required, validation.RuneLength(1, 16)),
	}.Filter()
}

func (s *CollectionService) Create(ctx context.Context, userID uint, input CreateCollectionInput) (*model.Collection, error) {
	collection := &model.Collection{
		UserID:      userID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Color:       strings.TrimSpace(input.Color),
		Icon:        strings.TrimSpace(input.Icon),
		ParentID:    input.ParentID,
	}
	if collection.Color == "" {
		collection.Color = model.DefaultCollectionColor
	}
	if collection.Icon == "" {
		collection.Icon = model.DefaultCollectionIcon
	}
	if err := validateCollectionFields(collection.Name, collection.Description, collection.Color, collection.Icon); err != nil {
		return nil, invalid(err)
	}

	if input.ParentID != nil {
		parent, err := s.collectionRepo.GetByIDAndUserID(ctx, *input.ParentID, userID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent %d", ErrCollectionNotFound, *input.ParentID)
		}
	}

	order, err := s.collectionRepo.NextSortOrder(ctx, userID, input.ParentID)
	if err != nil {
		return nil, err
	}
	collection.SortOrder = order

	if err := s.collectionRepo.Create(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *CollectionService) List(ctx context.Context, userID uint) (*CollectionListResult, error) {
	collections, err := s.collectionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.documentCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]CollectionView, 0, len(collections))
	for _, c := range collections {
		views = append(views, CollectionView{Collection: c, DocumentCount: counts[c.ID]})
	}
	return &CollectionListResult{
		Collections: views,
		Tree:        colltree.NewIndex(collections).Build(counts),
	}, nil
}

func (s *CollectionService) Get(ctx context.Context, userID, id uint) (*CollectionDetail, error) {
	collections, err := s.collectionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	index := colltree.NewIndex(collections)
	collection, ok := index.Lookup(id)
	if !ok {
		return nil, ErrCollectionNotFound
	}

	path, err := index.Path(id, colltree.BestEffort)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(path))
	for _, c := range path {
		names = append(names, c.Name)
	}

	count, err := s.documentRepo.CountActiveInCollection(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &CollectionDetail{
		Collection:    collection,
		DocumentCount: count,
		Path:          path,
		PathNames:     strings.Join(names, " / "),
	}, nil
}

func (s *CollectionService) Update(ctx context.Context, userID, id uint, input UpdateCollectionInput) (*model.Collection, error) {
	if input.Name == nil && input.Description == nil && input.Color == nil &&
		input.Icon == nil && !input.ParentID.Present && input.Order == nil {
		return nil, ErrNoUpdateFields
	}

	collections, err := s.collectionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	index := colltree.NewIndex(collections)
	current, ok := index.Lookup(id)
	if !ok {
		return nil, ErrCollectionNotFound
	}
	collection := current

	if input.Name != nil {
		collection.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		collection.Description = strings.TrimSpace(*input.Description)
	}
	if input.Color != nil {
		collection.Color = strings.TrimSpace(*input.Color)
	}
	if input.Icon != nil {
		collection.Icon = strings.TrimSpace(*input.Icon)
	}
	if input.Order != nil {
		collection.SortOrder = *input.Order
	}
	if err := validateCollectionFields(collection.Name, collection.Description, collection.Color, collection.Icon); err != nil {
		return nil, invalid(err)
	}

	if input.ParentID.Present {
		if parentID := input.ParentID.Value; parentID != nil {
			if _, ok := index.Lookup(*parentID); !ok {
				return nil, fmt.Errorf("%w: parent %d", ErrCollectionNotFound, *parentID)
			}
			cycle, err := index.WouldCycle(id, *parentID)
			if err != nil && !errors.Is(err, colltree.ErrCycle) {
				return nil, err
			}
			if cycle || err != nil {
				return nil, ErrCircularReference
			}
		}
		collection.ParentID = input.ParentID.Value
	}

	if err := s.collectionRepo.Update(ctx, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// Delete refuses while children exist. Documents either move to the target
// or, without one, must all be soft-deleted already.
func (s *CollectionService) Delete(ctx context.Context, userID, id uint, target *DeleteTarget) (*CollectionDeleteResult, error) {
	collection, err := s.collectionRepo.GetByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, ErrCollectionNotFound
	}

	children, err := s.collectionRepo.CountChildren(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if children > 0 {
		return nil, fmt.Errorf("%w: %d child collection(s)", ErrCollectionHasChildren, children)
	}

	reassign := target != nil
	var targetID *uint
	if reassign && target.ID != nil {
		if *target.ID == id {
			return nil, fmt.Errorf("%w: cannot move documents into the collection being deleted", ErrInvalidInput)
		}
		dest, err := s.collectionRepo.GetByIDAndUserID(ctx, *target.ID, userID)
		if err != nil {
			return nil, err
		}
		if dest == nil {
			return nil, fmt.Errorf("%w: target %d", ErrCollectionNotFound, *target.ID)
		}
		targetID = target.ID
	}

	if !reassign {
		count, err := s.documentRepo.CountActiveInCollection(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: %d document(s)", ErrCollectionNotEmpty, count)
		}
	}

	moved, err := s.collectionRepo.Delete(ctx, userID, id, reassign, targetID)
	if err != nil {
		return nil, err
	}
	return &CollectionDeleteResult{MovedDocuments: moved}, nil
}

// Reorder applies each item independently and returns how many matched.
func (s *CollectionService) Reorder(ctx context.Context, userID uint, items []ReorderItem) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: items is required", ErrInvalidInput)
	}
	updated := 0
	for _, item := range items {
		ok, err := s.collectionRepo.UpdateSortOrder(ctx, userID, item.ID, item.Order)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (s *CollectionService) documentCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	usage, err := s.documentRepo.UsageByCollection(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(usage))
	for _, u := range usage {
		if u.CollectionID != nil {
			counts[*u.CollectionID] = u.DocumentCount
		}
	}
	return counts, nil
}
