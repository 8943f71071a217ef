// Product HTTP handlers.
//
//   - GET /products  (filtered listing, cursor pagination, X-Cache header)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/services"
	"github.com/tbourn/go-catalog-cache/internal/utils"
)

// HeaderCache reports whether a listing was served from the cache.
const HeaderCache = "X-Cache"

// parseProductQuery maps query parameters onto a ProductQuery. Absent or
// blank numeric parameters are unset; malformed ones are rejected.
func parseProductQuery(c *gin.Context) (domain.ProductQuery, string, bool) {
	var q domain.ProductQuery

	cat, ok := c.GetQuery("category")
	q.Category = utils.OptionalString(cat, ok)
	search, ok := c.GetQuery("search")
	q.Search = utils.OptionalString(search, ok)

	var err error
	if q.MinPrice, err = utils.ParseOptionalFloat(c.Query("minPrice")); err != nil {
		return q, "minPrice must be a number", false
	}
	if q.MaxPrice, err = utils.ParseOptionalFloat(c.Query("maxPrice")); err != nil {
		return q, "maxPrice must be a number", false
	}
	if q.Cursor, err = utils.ParseOptionalUint(c.Query("cursor")); err != nil {
		return q, "cursor must be a non-negative integer", false
	}
	if q.Limit, err = utils.AtoiDefault(c.Query("limit"), 0); err != nil {
		return q, "limit must be an integer", false
	}
	return q, "", true
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List products
// @Description Returns products matching the filters, ordered by id. Pages are served from a cache for up to the configured TTL, so recent writes may not be visible yet. Paginate by passing the last id seen as cursor.
// @Tags        Products
// @Produce     json
//
// @Param       category  query  string  false  "Exact category"                 example(Fruits)
// @Param       search    query  string  false  "Substring of the product name"  example(apple)
// @Param       minPrice  query  number  false  "Inclusive lower price bound"    example(1.5)
// @Param       maxPrice  query  number  false  "Inclusive upper price bound"    example(20)
// @Param       cursor    query  int     false  "Return ids greater than this"   minimum(0)
// @Param       limit     query  int     false  "Page size"                      minimum(1) maximum(100) default(10)
//
// @Success     200  {array}   domain.Product
// @Header      200  {string}  X-Cache  "HIT or MISS"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed parameter"
// @Failure     503  {object}  handlers.ErrorResponse  "Catalog unavailable"
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	q, msg, valid := parseProductQuery(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}

	res, err := h.products.Query(c.Request.Context(), q)
	switch {
	case err == nil:
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "catalog temporarily unavailable")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list products")
		return
	}

	if res.Hit {
		c.Header(HeaderCache, "HIT")
	} else {
		c.Header(HeaderCache, "MISS")
	}
	items := res.Products
	if items == nil {
		items = []domain.Product{}
	}
	ok(c, http.StatusOK, items)
}
