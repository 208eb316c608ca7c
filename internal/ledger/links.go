package ledger

import (
	"sort"

	"github.com/ledgerline-dev/ledgerline/internal/model"
)

// linkIndex stores the movement/activity link relation once, indexed from both
// sides. Every mutation goes through put/remove, so the two views can never
// drift apart.
type linkIndex struct {
	byID       map[string]model.Link
	byMovement map[string]map[string]bool
	byActivity map[string]map[string]bool
}

func newLinkIndex() linkIndex {
	return linkIndex{
		byID:       make(map[string]model.Link),
		byMovement: make(map[string]map[string]bool),
		byActivity: make(map[string]map[string]bool),
	}
}

// put upserts a link row, reindexing if its endpoints changed.
func (ix *linkIndex) put(link model.Link) {
	ix.remove(link.ID)
	ix.byID[link.ID] = link

	if ix.byMovement[link.Movement] == nil {
		ix.byMovement[link.Movement] = make(map[string]bool)
	}
	ix.byMovement[link.Movement][link.ID] = true

	if ix.byActivity[link.Activity] == nil {
		ix.byActivity[link.Activity] = make(map[string]bool)
	}
	ix.byActivity[link.Activity][link.ID] = true
}

// remove deletes a link row and its index entries. No-op for unknown IDs.
func (ix *linkIndex) remove(id string) {
	link, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)
	if ids := ix.byMovement[link.Movement]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(ix.byMovement, link.Movement)
		}
	}
	if ids := ix.byActivity[link.Activity]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(ix.byActivity, link.Activity)
		}
	}
}

func (ix *linkIndex) get(id string) (model.Link, bool) {
	l, ok := ix.byID[id]
	return l, ok
}

func (ix *linkIndex) byMovementList(movementID string) []model.Link {
	return ix.collect(ix.byMovement[movementID])
}

func (ix *linkIndex) byActivityList(activityID string) []model.Link {
	return ix.collect(ix.byActivity[activityID])
}

func (ix *linkIndex) collect(ids map[string]bool) []model.Link {
	out := make([]model.Link, 0, len(ids))
	for id := range ids {
		out = append(out, ix.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
