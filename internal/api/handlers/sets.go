package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-resolver/backend/internal/services"
)

// SetHandler exposes the set knowledge base for debugging extractions.
type SetHandler struct{}

func NewSetHandler() *SetHandler {
	return &SetHandler{}
}

// GetFamily expands a generic set name: GET /api/sets/family?set=xy
func (h *SetHandler) GetFamily(c *gin.Context) {
	set := c.Query("set")
	if set == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "set query parameter is required"})
		return
	}
	family := services.GetSetFamily(set)
	if family == nil {
		family = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"set":    set,
		"family": family,
	})
}

// CorrectSet runs the set corrections for a set/number pair and, optionally,
// a printed total and a symbol description:
// GET /api/sets/correct?set=Base%20Set&number=110&total=130&symbol=...
func (h *SetHandler) CorrectSet(c *gin.Context) {
	set := c.Query("set")
	number := c.Query("number")
	symbol := c.Query("symbol")

	resp := gin.H{
		"set":               set,
		"number":            number,
		"number_valid":      services.IsValidCardNumber(number),
		"set_valid":         services.IsValidSetName(set),
		"corrected_set":     services.CorrectSetBasedOnNumberPattern(set, number),
		"xy_set_for_number": services.CorrectXYSetBasedOnNumber(number),
	}

	if v := c.Query("total"); v != "" {
		total, err := strconv.Atoi(v)
		if err != nil || total <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total"})
			return
		}
		candidates := services.SetsForTotalCount(total)
		if candidates == nil {
			candidates = []string{}
		}
		resp["set_for_total"] = services.GetSetFromTotalCount(total)
		resp["sets_with_total"] = candidates
	}
	if symbol != "" {
		resp["symbol"] = symbol
		resp["set_for_symbol"] = services.ExtractSetNameFromSymbol(symbol)
	}

	c.JSON(http.StatusOK, resp)
}
