package core

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportService builds the downloadable XLSX statement for a company: one
// sheet of daily reconciliations and one sheet of the payment history.
type ExportService interface {
	ExportCompanyStatement(ctx context.Context, companyCode, fromDate, toDate string) (*excelize.File, error)
}

type exportService struct {
	companies       CompanyService
	reconciliations ReconciliationService
	payments        PaymentService
}

func NewExportService(companies CompanyService, reconciliations ReconciliationService, payments PaymentService) ExportService {
	return &exportService{companies: companies, reconciliations: reconciliations, payments: payments}
}

func (s *exportService) ExportCompanyStatement(ctx context.Context, companyCode, fromDate, toDate string) (*excelize.File, error) {
	company, err := s.companies.GetCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	recons, err := s.reconciliations.GetCompanyReconciliations(ctx, companyCode, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.GetCompanyPayments(ctx, companyCode)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()

	reconSheet := "Reconciliations"
	f.SetSheetName("Sheet1", reconSheet)
	reconHeaders := []string{"Date", "Orders", "Delivered", "Cancelled", "Total", "Courier Cost", "Commission", "Net", "Paid", "Remaining", "Status"}
	for i, header := range reconHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reconSheet, cell, header)
	}
	for i, r := range recons {
		row := i + 2
		f.SetCellValue(reconSheet, fmt.Sprintf("A%d", row), r.Date)
		f.SetCellValue(reconSheet, fmt.Sprintf("B%d", row), r.TotalOrders)
		f.SetCellValue(reconSheet, fmt.Sprintf("C%d", row), r.DeliveredOrders)
		f.SetCellValue(reconSheet, fmt.Sprintf("D%d", row), r.CancelledOrders)
		f.SetCellValue(reconSheet, fmt.Sprintf("E%d", row), r.TotalAmount.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("F%d", row), r.CourierCost.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("G%d", row), r.PlatformCommission.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("H%d", row), r.NetAmount.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("I%d", row), r.PaidAmount.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("J%d", row), r.RemainingAmount.StringFixed(2))
		f.SetCellValue(reconSheet, fmt.Sprintf("K%d", row), string(r.Status))
	}

	paySheet := "Payments"
	if _, err := f.NewSheet(paySheet); err != nil {
		return nil, fmt.Errorf("failed to create payments sheet: %w", err)
	}
	payHeaders := []string{"ID", "Type", "Amount", "Method", "Reference", "Reconciliation", "Status", "Processed At"}
	for i, header := range payHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(paySheet, cell, header)
	}
	for i, p := range payments {
		row := i + 2
		f.SetCellValue(paySheet, fmt.Sprintf("A%d", row), p.ID)
		f.SetCellValue(paySheet, fmt.Sprintf("B%d", row), string(p.PaymentType))
		f.SetCellValue(paySheet, fmt.Sprintf("C%d", row), p.Amount.StringFixed(2))
		f.SetCellValue(paySheet, fmt.Sprintf("D%d", row), p.PaymentMethod)
		if p.TransactionReference != nil {
			f.SetCellValue(paySheet, fmt.Sprintf("E%d", row), *p.TransactionReference)
		}
		if p.ReconciliationID != nil {
			f.SetCellValue(paySheet, fmt.Sprintf("F%d", row), *p.ReconciliationID)
		}
		f.SetCellValue(paySheet, fmt.Sprintf("G%d", row), string(p.Status))
		f.SetCellValue(paySheet, fmt.Sprintf("H%d", row), p.ProcessedAt.Format("2006-01-02 15:04"))
	}

	f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Statement %s", company.CompanyCode),
		Subject: company.Name,
	})
	return f, nil
}
