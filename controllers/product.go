package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// ProductController handles product-related requests
type ProductController struct {
	Products storage.Collection[models.Product]
	Logger   *slog.Logger
}

// NewProductController creates a new ProductController
func NewProductController(products storage.Collection[models.Product], logger *slog.Logger) *ProductController {
	return &ProductController{
		Products: products,
		Logger:   loggerOrDefault(logger),
	}
}

type positionUpdate struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// sortByPosition orders products for display. Equal positions keep storage order.
func sortByPosition(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].SortKey() < products[j].SortKey()
	})
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := utils.DecodeJSON(w, r, &product); err != nil {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}
	product.ID = ""
	product.CreatedAt = time.Time{}

	created, err := pc.Products.Create(r.Context(), product)
	if err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to create product")
		return
	}
	pc.Logger.Info("product created", "id", created.ID, "name", created.Name)
	utils.RespondJSON(w, http.StatusCreated, created)
}

// GetProducts lists products, optionally filtered by ?category, in display order
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	query := storage.Query{}
	if category := r.URL.Query().Get("category"); category != "" && category != "all" {
		query["category"] = category
	}

	products, err := pc.Products.Find(r.Context(), query)
	if err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to fetch products")
		return
	}
	sortByPosition(products)
	utils.RespondJSON(w, http.StatusOK, products)
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	product, err := pc.Products.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to fetch product")
		return
	}
	utils.RespondJSON(w, http.StatusOK, product)
}

// UpdateProduct merges the request body onto an existing product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch storage.Patch
	if err := utils.DecodeJSON(w, r, &patch); err != nil {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}

	product, err := pc.Products.FindByIDAndUpdate(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to update product")
		return
	}
	utils.RespondJSON(w, http.StatusOK, product)
}

// DeleteProduct deletes a product by ID (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := pc.Products.FindByIDAndDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to delete product")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Product removed"})
}

// ReorderProducts sets display positions from [{id, position}] (Admin only).
// Every id is checked before anything is written, and a failed write puts the
// positions already changed back.
func (pc *ProductController) ReorderProducts(w http.ResponseWriter, r *http.Request) {
	var updates []positionUpdate
	if err := utils.DecodeJSON(w, r, &updates); err != nil || len(updates) == 0 {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}
	previous := make([]models.Product, 0, len(updates))
	for _, u := range updates {
		if u.Position < 0 {
			utils.RespondError(w, "Position must not be negative", http.StatusBadRequest)
			return
		}
		product, err := pc.Products.FindByID(r.Context(), u.ID)
		if err != nil {
			respondStoreError(w, pc.Logger, err, "Product not found: "+u.ID, "Failed to reorder products")
			return
		}
		previous = append(previous, *product)
	}

	for i, u := range updates {
		if _, err := pc.Products.FindByIDAndUpdate(r.Context(), u.ID, storage.Patch{"position": u.Position}); err != nil {
			pc.restorePositions(previous[:i])
			respondStoreError(w, pc.Logger, err, "Product not found: "+u.ID, "Failed to reorder products")
			return
		}
	}

	products, err := pc.Products.Find(r.Context(), storage.Query{})
	if err != nil {
		respondStoreError(w, pc.Logger, err, "Product not found", "Failed to fetch products")
		return
	}
	sortByPosition(products)
	utils.RespondJSON(w, http.StatusOK, products)
}

// restorePositions puts back the positions read before a reorder started. It runs
// detached from the request so a cancelled client does not stop it.
func (pc *ProductController) restorePositions(previous []models.Product) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range previous {
		var position any
		if p.Position != nil {
			position = *p.Position
		}
		if _, err := pc.Products.FindByIDAndUpdate(ctx, p.ID, storage.Patch{"position": position}); err != nil {
			pc.Logger.Error("failed to restore product position", "id", p.ID, "error", err)
		}
	}
}
