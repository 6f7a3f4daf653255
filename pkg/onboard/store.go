package onboard

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/config"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Store persists customer records in MySQL and keeps a small LRU in front of
// the existence check. A Store built without a DSN is cache-only, which is
// the testing configuration.
type Store struct {
	conn  sqlx.SqlConn
	cache *lru.Cache[string, CustomerRecord]
}

func NewStore(dsn string) *Store {
	cache, _ := lru.New[string, CustomerRecord](config.MaxCachedCustomers)
	s := &Store{cache: cache}

	if dsn == "" {
		return s
	}

	db := sqlx.NewMysql(dsn)
	if err := createCustomerTable(db); err != nil {
		logrus.WithError(err).Error("tracelink couldn't create table t_Customer")
		return s
	}
	s.conn = db
	return s
}

func createCustomerTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_Customer` " +
		"(record_id VARCHAR(36), " +
		"customer_id VARCHAR(64), " +
		"email VARCHAR(128), " +
		"type VARCHAR(32), " +
		"company_name VARCHAR(128), " +
		"industry VARCHAR(64), " +
		"region VARCHAR(32), " +
		"risk_level VARCHAR(16), " +
		"validation_score DOUBLE, " +
		"operation VARCHAR(16), " +
		"created_at VARCHAR(40))")
	return err
}

// CheckExisting reports whether the customer was onboarded before.
func (s *Store) CheckExisting(ctx context.Context, customerID string) (CustomerRecord, bool) {
	if rec, hit := s.cache.Get(customerID); hit {
		return rec, true
	}
	if s.conn == nil {
		return CustomerRecord{}, false
	}

	var rec struct {
		RecordID   string `db:"record_id"`
		CustomerID string `db:"customer_id"`
		Email      string `db:"email"`
		CreatedAt  string `db:"created_at"`
	}
	err := s.conn.QueryRowCtx(ctx, &rec,
		"SELECT record_id, customer_id, email, created_at FROM `t_Customer` WHERE customer_id = ? LIMIT 1",
		customerID)
	switch err {
	case nil:
	case sqlx.ErrNotFound:
		return CustomerRecord{}, false
	default:
		logrus.WithError(err).WithField("customer_id", customerID).
			Warn("tracelink couldn't query customer record")
		return CustomerRecord{}, false
	}

	found := CustomerRecord{RecordID: rec.RecordID}
	found.CustomerID = rec.CustomerID
	found.Email = rec.Email
	found.CreatedAt = rec.CreatedAt
	return found, true
}

// SaveRecord writes the record through to MySQL and the cache.
func (s *Store) SaveRecord(ctx context.Context, rec CustomerRecord) error {
	s.cache.Add(rec.CustomerID, rec)
	if s.conn == nil {
		return nil
	}

	_, err := s.conn.ExecCtx(ctx,
		"INSERT INTO `t_Customer` "+
			"(record_id, customer_id, email, type, company_name, industry, region, risk_level, validation_score, operation, created_at) "+
			"VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		rec.RecordID,
		rec.CustomerID,
		rec.Email,
		rec.Type,
		rec.CompanyName,
		rec.Industry,
		rec.Region,
		rec.RiskLevel,
		rec.ValidationScore,
		rec.Operation,
		rec.CreatedAt)
	return err
}
