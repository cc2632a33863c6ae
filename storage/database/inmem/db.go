package inmemdb

import (
	"sync"

	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
)

type (
	DB struct {
		student   *studentTable
		ledger    *ledgerTable
		essay     *essayTable
		corrector *correctorTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	ledgerTable struct {
		sync.RWMutex
		table []student.LedgerEntry
	}

	essayTable struct {
		sync.RWMutex
		table map[string]*essay.Essay
	}

	correctorTable struct {
		sync.RWMutex
		table map[string]*essay.Corrector
	}
)

func Open() (*DB, error) {
	db := &DB{
		student:   &studentTable{table: make(map[string]*student.Student)},
		ledger:    &ledgerTable{table: make([]student.LedgerEntry, 0)},
		essay:     &essayTable{table: make(map[string]*essay.Essay)},
		corrector: &correctorTable{table: make(map[string]*essay.Corrector)},
	}
	return db, nil
}
