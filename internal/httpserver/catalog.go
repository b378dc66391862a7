package httpserver

import (
	"net/http"

	"atomovision-editorial/internal/domain"
	"github.com/gin-gonic/gin"
)

func listBooksHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := catalog.ListBooks(c.Request.Context(), c.Query("genre"))
		if err != nil {
			respondError(c, err)
			return
		}
		if books == nil {
			books = []domain.Book{}
		}
		respondData(c, http.StatusOK, books)
	}
}

func getBookHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		book, err := catalog.GetBook(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, book)
	}
}

func listGenresHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		genres, err := catalog.ListGenres(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if genres == nil {
			genres = []domain.Genre{}
		}
		respondData(c, http.StatusOK, genres)
	}
}
