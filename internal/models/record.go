package models

import (
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// Record is one source-IP aggregation row, owned by its report and
// deleted in cascade with it.
type Record struct {
	ID          string           `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ReportID    string           `gorm:"column:report_id;type:varchar(50);index:idx_records_report_id;not null" json:"reportId"`
	SourceIP    string           `gorm:"column:source_ip;type:varchar(45);not null" json:"sourceIp"`
	Count       int              `gorm:"column:count;not null" json:"count"`
	Disposition enum.Disposition `gorm:"column:disposition;type:varchar(20)" json:"disposition"`
	DKIMResult  enum.AuthResult  `gorm:"column:dkim_result;type:varchar(10)" json:"dkimResult"`
	SPFResult   enum.AuthResult  `gorm:"column:spf_result;type:varchar(10)" json:"spfResult"`
}

func (Record) TableName() string {
	return "records"
}

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rec", 21)
	}
	return nil
}

// Failed reports whether this source failed either authentication check.
func (r *Record) Failed() bool {
	return r.DKIMResult != enum.AuthResultPass || r.SPFResult != enum.AuthResultPass
}
