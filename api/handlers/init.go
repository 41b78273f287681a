package handlers

import "github.com/customeros/dmarcwatch/internal/repository"

type APIHandlers struct {
	Reports *ReportsHandler
	Admin   *AdminHandler
}

func InitHandlers(r *repository.Repositories) *APIHandlers {
	return &APIHandlers{
		Reports: NewReportsHandler(r),
		Admin:   NewAdminHandler(r),
	}
}
