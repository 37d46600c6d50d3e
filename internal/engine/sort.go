package engine

import (
	"sort"

	"github.com/piwi3910/bompack/internal/model"
)

// item is one input rectangle together with its stable source index.
type item struct {
	index int
	rect  model.Rectangle
}

// SortRectangles returns the source indices of rects ordered by the key
// of method, largest first. Equal keys keep their input order.
func SortRectangles(rects []model.Rectangle, method model.SortMethod) []int {
	key := sortKey(method)
	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return key(rects[order[i]]) > key(rects[order[j]])
	})
	return order
}

func sortKey(method model.SortMethod) func(model.Rectangle) float64 {
	switch method {
	case model.SortHeight:
		return func(r model.Rectangle) float64 { return r.Height }
	case model.SortWidth:
		return func(r model.Rectangle) float64 { return r.Width }
	case model.SortPerimeter:
		return model.Rectangle.Perimeter
	default:
		return model.Rectangle.Area
	}
}

// sortedItems returns rects as items in packing order.
func sortedItems(rects []model.Rectangle, method model.SortMethod) []item {
	order := SortRectangles(rects, method)
	items := make([]item, len(order))
	for i, idx := range order {
		items[i] = item{index: idx, rect: rects[idx]}
	}
	return items
}
