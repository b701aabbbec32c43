package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/davidkovac996/Digistore24Task/internal/service/search"
	"github.com/davidkovac996/Digistore24Task/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	// The server boots without a client when Elasticsearch is down; only
	// this endpoint degrades, the catalog itself stays up.
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Search is temporarily unavailable.")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
