package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eldertek/pg-pointage-sub001/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxEmployeeNumber = 99999

// NextEmployeeID issues the next sequential employee id in the
// U00001..U99999 range. The locking read on the current maximum makes
// concurrent issuance safe; the caller must run it inside a transaction.
func NextEmployeeID(tx *gorm.DB) (string, error) {
	q := tx.Model(&models.User{}).
		Where("employee_id LIKE ?", "U%").
		Order("employee_id DESC")
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var last models.User
	err := q.First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return "U00001", nil
	}
	if err != nil {
		return "", WrapDomainError(ErrTransientDb, err, "employee id lookup failed")
	}

	number, err := strconv.Atoi(strings.TrimPrefix(last.EmployeeID, "U"))
	if err != nil {
		return "U00001", nil
	}
	if number >= maxEmployeeNumber {
		return "", NewDomainError(ErrIdSpaceExhausted, "employee id space exhausted at U%05d", maxEmployeeNumber)
	}
	return fmt.Sprintf("U%05d", number+1), nil
}
