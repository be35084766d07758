package main

import (
	"net/http"

	"bitbucket.org/auditdesk/audit_backend/models"
	"github.com/gin-gonic/gin"
)

/* states */

func listStatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		states, err := models.GetStates(c.Request.Context(), optionalQuery(c, "country"), optionalQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, states)
	}
}

func listAllStatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		states, err := models.ListAllState(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, states)
	}
}

func paginateStatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := optionalIntQuery(c, "limit")
		if !ok {
			return
		}
		page, err := models.PaginateState(c.Request.Context(), limit, optionalQuery(c, "after"),
			optionalQuery(c, "country"), optionalQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		state, err := models.GetState(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func createStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewState
		if !bindJSON(c, &input) {
			return
		}
		state, err := models.CreateState(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, state)
	}
}

func updateStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewState
		if !bindJSON(c, &input) {
			return
		}
		state, err := models.UpdateState(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func deleteStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		state, err := models.DeleteState(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func toggleStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		isActive, ok := bindToggle(c)
		if !ok {
			return
		}
		state, err := models.ToggleActiveState(c.Request.Context(), id, isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

/* cities */

func listCitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stateId, ok := optionalIntQuery(c, "state_id")
		if !ok {
			return
		}
		cities, err := models.GetCities(c.Request.Context(), stateId, optionalQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cities)
	}
}

func listAllCitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cities, err := models.ListAllCity(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cities)
	}
}

func paginateCitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := optionalIntQuery(c, "limit")
		if !ok {
			return
		}
		stateId, ok := optionalIntQuery(c, "state_id")
		if !ok {
			return
		}
		page, err := models.PaginateCity(c.Request.Context(), limit, optionalQuery(c, "after"), stateId, optionalQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getCityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		city, err := models.GetCity(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, city)
	}
}

func createCityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCity
		if !bindJSON(c, &input) {
			return
		}
		city, err := models.CreateCity(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, city)
	}
}

func updateCityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewCity
		if !bindJSON(c, &input) {
			return
		}
		city, err := models.UpdateCity(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, city)
	}
}

func deleteCityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		city, err := models.DeleteCity(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, city)
	}
}

func toggleCityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		isActive, ok := bindToggle(c)
		if !ok {
			return
		}
		city, err := models.ToggleActiveCity(c.Request.Context(), id, isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, city)
	}
}

/* tax rates */

func listTaxRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		taxRates, err := models.GetTaxRates(c.Request.Context(), optionalQuery(c, "name"), optionalQuery(c, "schedule_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRates)
	}
}

func listAllTaxRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		taxRates, err := models.ListAllTaxRate(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRates)
	}
}

func paginateTaxRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := optionalIntQuery(c, "limit")
		if !ok {
			return
		}
		page, err := models.PaginateTaxRate(c.Request.Context(), limit, optionalQuery(c, "after"), optionalQuery(c, "schedule_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getTaxRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		taxRate, err := models.GetTaxRate(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRate)
	}
}

func createTaxRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTaxRate
		if !bindJSON(c, &input) {
			return
		}
		taxRate, err := models.CreateTaxRate(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, taxRate)
	}
}

func updateTaxRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewTaxRate
		if !bindJSON(c, &input) {
			return
		}
		taxRate, err := models.UpdateTaxRate(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRate)
	}
}

func deleteTaxRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		taxRate, err := models.DeleteTaxRate(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRate)
	}
}

func toggleTaxRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		isActive, ok := bindToggle(c)
		if !ok {
			return
		}
		taxRate, err := models.ToggleActiveTaxRate(c.Request.Context(), id, isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, taxRate)
	}
}

/* account types */

func listAccountTypesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountTypes, err := models.ListAllAccountType(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accountTypes)
	}
}

func getAccountTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountType, err := models.GetAccountType(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accountType)
	}
}

func createAccountTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountType
		if !bindJSON(c, &input) {
			return
		}
		accountType, err := models.CreateAccountType(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, accountType)
	}
}

func updateAccountTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountType
		if !bindJSON(c, &input) {
			return
		}
		accountType, err := models.UpdateAccountType(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accountType)
	}
}

func deleteAccountTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountType, err := models.DeleteAccountType(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accountType)
	}
}

func toggleAccountTypeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		isActive, ok := bindToggle(c)
		if !ok {
			return
		}
		accountType, err := models.ToggleActiveAccountType(c.Request.Context(), c.Param("id"), isActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, accountType)
	}
}
