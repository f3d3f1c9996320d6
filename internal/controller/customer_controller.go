// internal/controller/customer_controller.go
package controller

import (
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/leadpilot-backend/internal/repository"
)

// CustomerController exposes the customers created from won conversations.
type CustomerController struct {
    Customers repository.CustomerRepositoryInterface
}

func (c *CustomerController) Routes(r chi.Router) {
    r.Get("/customers", c.ListCustomers)
    r.Get("/customers/{id}", c.GetCustomer)
}

func (c *CustomerController) ListCustomers(w http.ResponseWriter, r *http.Request) {
    limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
    if limit < 1 {
        limit = 20
    }
    if limit > 100 {
        limit = 100
    }

    customers, err := c.Customers.List(r.Context(), limit)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, map[string]interface{}{
        "data":  customers,
        "count": len(customers),
    })
}

func (c *CustomerController) GetCustomer(w http.ResponseWriter, r *http.Request) {
    id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
    if err != nil {
        http.Error(w, "invalid customer id", http.StatusBadRequest)
        return
    }

    customer, err := c.Customers.GetByID(r.Context(), id)
    if err != nil {
        writeError(w, err)
        return
    }
    if customer == nil {
        http.Error(w, "customer not found", http.StatusNotFound)
        return
    }
    writeJSON(w, http.StatusOK, customer)
}
