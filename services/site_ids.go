package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eldertek/pg-pointage-sub001/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxSiteNumber = 9999

// NextSiteNfcID issues the next scan identifier for the organization, in
// the ORG-S0001..ORG-S9999 range. Same locking discipline as employee id
// issuance: run inside a transaction.
func NextSiteNfcID(tx *gorm.DB, org *models.Organization) (string, error) {
	prefix := org.OrgID + "-S"
	q := tx.Model(&models.Site{}).
		Where("organization_id = ? AND nfc_id LIKE ?", org.ID, prefix+"%").
		Order("nfc_id DESC")
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var last models.Site
	err := q.First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	}
	if err != nil {
		return "", WrapDomainError(ErrTransientDb, err, "site id lookup failed")
	}

	number, err := strconv.Atoi(strings.TrimPrefix(last.NfcID, prefix))
	if err != nil {
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	}
	if number >= maxSiteNumber {
		return "", NewDomainError(ErrIdSpaceExhausted, "site id space exhausted at %s%04d", prefix, maxSiteNumber)
	}
	return fmt.Sprintf("%s%04d", prefix, number+1), nil
}
