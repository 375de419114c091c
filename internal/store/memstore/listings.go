package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func firstN[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// byRating orders best rated first, newest first on ties.
func byRating(products []models.Product) {
	sort.Slice(products, func(i, j int) bool {
		if c := products[i].Ratings.Cmp(products[j].Ratings); c != 0 {
			return c > 0
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}

func (q *queries) ListFeatured(ctx context.Context, minRating decimal.Decimal, limit int) ([]models.Product, error) {
	defer q.lock()()
	out := []models.Product{}
	for _, p := range q.d.products {
		if p.Stock > 0 && p.Ratings.GreaterThanOrEqual(minRating) {
			out = append(out, p)
		}
	}
	byRating(out)
	return firstN(out, limit), nil
}

func (q *queries) ListNewArrivals(ctx context.Context, since time.Time, limit int) ([]models.Product, error) {
	defer q.lock()()
	out := []models.Product{}
	for _, p := range q.d.products {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return firstN(out, limit), nil
}

func (q *queries) ListRelated(ctx context.Context, productID uuid.UUID, category string, limit int) ([]models.Product, error) {
	defer q.lock()()
	out := []models.Product{}
	for _, p := range q.d.products {
		if p.Category == category && p.ID != productID {
			out = append(out, p)
		}
	}
	byRating(out)
	return firstN(out, limit), nil
}

// soldByProduct sums quantity and line revenue per product over paid orders.
func (q *queries) soldByProduct() (map[uuid.UUID]int, map[uuid.UUID]decimal.Decimal) {
	sold := map[uuid.UUID]int{}
	revenue := map[uuid.UUID]decimal.Decimal{}
	for _, o := range q.d.orders {
		if o.PaidAt == nil {
			continue
		}
		for _, it := range o.Items {
			sold[it.ProductID] += it.Quantity
			revenue[it.ProductID] = revenue[it.ProductID].Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return sold, revenue
}

func compareSummaries(a, b models.ProductSummary, column string) int {
	switch column {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "price":
		return a.Price.Cmp(b.Price)
	case "stock":
		return a.Stock - b.Stock
	case "ratings":
		return a.Ratings.Cmp(b.Ratings)
	case "total_sold":
		return a.TotalSold - b.TotalSold
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (q *queries) ListProductsAdmin(ctx context.Context, f store.AdminProductFilter) ([]models.ProductSummary, int, error) {
	defer q.lock()()
	f = f.Normalize()
	search := strings.ToLower(f.Search)

	reviews := map[uuid.UUID]int{}
	for _, r := range q.d.reviews {
		reviews[r.ProductID]++
	}
	sold, _ := q.soldByProduct()

	matched := []models.ProductSummary{}
	for _, p := range q.d.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.MinStock != nil && p.Stock < *f.MinStock {
			continue
		}
		if f.MaxStock != nil && p.Stock > *f.MaxStock {
			continue
		}
		matched = append(matched, models.ProductSummary{Product: p, ReviewCount: reviews[p.ID], TotalSold: sold[p.ID]})
	}

	sort.Slice(matched, func(i, j int) bool {
		c := compareSummaries(matched[i], matched[j], f.SortBy)
		if c == 0 {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		if f.Asc {
			return c < 0
		}
		return c > 0
	})

	total := len(matched)
	offset := f.Offset()
	if offset >= total {
		return []models.ProductSummary{}, total, nil
	}
	end := offset + f.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (q *queries) ProductStatistics(ctx context.Context) (*models.ProductStatistics, error) {
	defer q.lock()()
	stats := &models.ProductStatistics{
		TotalReviews:       len(q.d.reviews),
		TotalRevenue:       decimal.Zero,
		ProductsByCategory: []models.CategoryCount{},
		TopSoldProducts:    []models.TopProduct{},
	}

	categories := map[string]int{}
	var ratings []decimal.Decimal
	for _, p := range q.d.products {
		stats.TotalProducts++
		stats.TotalInventory += p.Stock
		switch {
		case p.Stock == 0:
			stats.OutOfStock++
		case p.Stock <= 5:
			stats.LowStock++
		}
		categories[p.Category]++
		ratings = append(ratings, p.Ratings)
	}
	stats.AverageRating = average(ratings)

	for c, n := range categories {
		stats.ProductsByCategory = append(stats.ProductsByCategory, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(stats.ProductsByCategory, func(i, j int) bool {
		a, b := stats.ProductsByCategory[i], stats.ProductsByCategory[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	for _, o := range q.d.orders {
		if o.PaidAt != nil {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
		}
	}

	sold, revenue := q.soldByProduct()
	for id, n := range sold {
		p, ok := q.d.products[id]
		if !ok {
			continue
		}
		stats.TopSoldProducts = append(stats.TopSoldProducts, models.TopProduct{ID: id, Name: p.Name, Sold: n, Revenue: revenue[id]})
	}
	sort.Slice(stats.TopSoldProducts, func(i, j int) bool {
		a, b := stats.TopSoldProducts[i], stats.TopSoldProducts[j]
		if a.Sold != b.Sold {
			return a.Sold > b.Sold
		}
		return a.Name < b.Name
	})
	stats.TopSoldProducts = firstN(stats.TopSoldProducts, 5)
	return stats, nil
}

func (q *queries) ListAllVariants(ctx context.Context) ([]models.VariantListing, error) {
	defer q.lock()()
	out := []models.VariantListing{}
	for _, v := range q.d.variants {
		p := q.d.products[v.ProductID]
		out = append(out, models.VariantListing{Variant: v, ProductName: p.Name, Category: p.Category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) ListVariantOptions(ctx context.Context, productID uuid.UUID, dim store.VariantDimension) ([]models.VariantOption, error) {
	defer q.lock()()
	value := func(v models.Variant) string { return v.Size }
	switch dim {
	case store.DimensionSize:
	case store.DimensionColor:
		value = func(v models.Variant) string { return v.Color }
	default:
		return nil, fmt.Errorf("unknown variant dimension %q", dim)
	}

	groups := map[string]*models.VariantOption{}
	for _, v := range q.d.variants {
		key := value(v)
		if v.ProductID != productID || key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			groups[key] = &models.VariantOption{Value: key, TotalStock: v.Stock, MinPrice: v.Price, MaxPrice: v.Price}
			continue
		}
		g.TotalStock += v.Stock
		g.MinPrice = decimal.Min(g.MinPrice, v.Price)
		g.MaxPrice = decimal.Max(g.MaxPrice, v.Price)
	}

	out := make([]models.VariantOption, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}
