package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrItemNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrAccountLocked):
		return http.StatusForbidden
	case models.IsConversionNotFound(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

/* auth */

func loginHandler() gin.HandlerFunc {
	type loginInput struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		token, user, err := models.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		models.Logout(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}

func registerUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

/* units & conversions */

func unitRefreshingHandler(conv *models.ConversionService, fn func(c *gin.Context) (any, int, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, status, err := fn(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		// Reference data changed: drop the shared cache and the local snapshot.
		if err := models.InvalidateConversionCache(); err == nil {
			_ = conv.Refresh(c.Request.Context())
		}
		c.JSON(status, result)
	}
}

func createUnitHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, 0, err
		}
		unit, err := models.CreateUnit(c.Request.Context(), &input)
		if err != nil {
			return nil, 0, err
		}
		return unit, http.StatusCreated, nil
	})
}

func updateUnitHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			return nil, 0, errors.New("invalid id")
		}
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, 0, err
		}
		unit, err := models.UpdateUnit(c.Request.Context(), id, &input)
		if err != nil {
			return nil, 0, err
		}
		return unit, http.StatusOK, nil
	})
}

func deleteUnitHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			return nil, 0, errors.New("invalid id")
		}
		unit, err := models.DeleteUnit(c.Request.Context(), id)
		if err != nil {
			return nil, 0, err
		}
		return unit, http.StatusOK, nil
	})
}

func listUnitsHandler(conv *models.ConversionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, conv.GetUnits(c.Request.Context()))
	}
}

func createUnitConversionHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		var input models.NewUnitConversion
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, 0, err
		}
		conversion, err := models.CreateUnitConversion(c.Request.Context(), &input)
		if err != nil {
			return nil, 0, err
		}
		return conversion, http.StatusCreated, nil
	})
}

func updateUnitConversionHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			return nil, 0, errors.New("invalid id")
		}
		var input models.NewUnitConversion
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, 0, err
		}
		conversion, err := models.UpdateUnitConversion(c.Request.Context(), id, &input)
		if err != nil {
			return nil, 0, err
		}
		return conversion, http.StatusOK, nil
	})
}

func deleteUnitConversionHandler(conv *models.ConversionService) gin.HandlerFunc {
	return unitRefreshingHandler(conv, func(c *gin.Context) (any, int, error) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			return nil, 0, errors.New("invalid id")
		}
		conversion, err := models.DeleteUnitConversion(c.Request.Context(), id)
		if err != nil {
			return nil, 0, err
		}
		return conversion, http.StatusOK, nil
	})
}

func listUnitConversionsHandler(conv *models.ConversionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, conv.GetConversions(c.Request.Context()))
	}
}

func convertQuantityHandler(conv *models.ConversionService) gin.HandlerFunc {
	type convertInput struct {
		Quantity   decimal.Decimal `json:"quantity" binding:"required"`
		FromUnitId int             `json:"from_unit_id" binding:"required"`
		ToUnitId   int             `json:"to_unit_id" binding:"required"`
	}
	return func(c *gin.Context) {
		var input convertInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		result, used, err := conv.ConvertQuantity(c.Request.Context(), input.Quantity, input.FromUnitId, input.ToUnitId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quantity": result, "conversion_used": used})
	}
}

/* inventory */

func createInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInventoryItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		item, err := models.CreateInventoryItem(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func updateInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewInventoryItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		item, err := models.UpdateInventoryItem(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		item, err := models.DeleteInventoryItem(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func getInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		item, err := models.GetInventoryItem(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func listInventoryItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var p models.Pagination
		if err := c.ShouldBindQuery(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		page, err := models.ListInventoryItems(c.Request.Context(), p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func listLowStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.ListLowStockItems(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func receiveStockHandler() gin.HandlerFunc {
	type receiveInput struct {
		Quantity     decimal.Decimal `json:"quantity" binding:"required"`
		UnitCost     decimal.Decimal `json:"unit_cost"`
		PurchaseDate *time.Time      `json:"purchase_date"`
		Reference    string          `json:"reference"`
	}
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input receiveInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		purchaseDate := time.Now()
		if input.PurchaseDate != nil {
			purchaseDate = *input.PurchaseDate
		}
		item, err := models.ReceiveStock(c.Request.Context(), id, input.Quantity, input.UnitCost, purchaseDate, input.Reference)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func consumeStockHandler() gin.HandlerFunc {
	type consumeInput struct {
		Quantity decimal.Decimal `json:"quantity" binding:"required"`
		Reason   string          `json:"reason"`
	}
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input consumeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		item, err := models.ConsumeStock(c.Request.Context(), id, input.Quantity, input.Reason)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func listStockMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.StockMovementFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		page, err := models.ListStockMovements(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

/* products */

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var p models.Pagination
		if err := c.ShouldBindQuery(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		page, err := models.ListProducts(c.Request.Context(), p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func productCostHandler(conv *models.ConversionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		breakdown, err := models.CalculateProductCost(c.Request.Context(), conv, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, breakdown)
	}
}

func recalculateProductCostHandler(conv *models.ConversionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.UpdateProductCost(c.Request.Context(), conv, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/* purchasing */

func createPurchaseHandler(conv *models.ConversionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchase
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		purchase, err := models.CreatePurchase(c.Request.Context(), conv, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, purchase)
	}
}

func listPurchasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.PurchaseFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		page, err := models.ListPurchases(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

/* suppliers & categories */

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func deleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		supplier, err := models.DeleteSupplier(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		suppliers, err := models.ListSuppliers(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, suppliers)
	}
}

func createItemCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewItemCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		category, err := models.CreateItemCategory(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func updateItemCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewItemCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		category, err := models.UpdateItemCategory(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func deleteItemCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		category, err := models.DeleteItemCategory(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func listItemCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := models.ListItemCategories(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}

/* audit */

func listAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.AuditLogFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		page, err := models.QueryLogs(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func exportAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.AuditLogFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.BindingErrorMessage(err)})
			return
		}
		buf, err := models.ExportAuditLogsXLSX(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="audit-logs.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func complianceReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := models.ComputeComplianceReport(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
