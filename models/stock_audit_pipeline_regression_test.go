package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/models"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Regression: a receipt must move the weighted average exactly once, leave an
// immutable movement row, and queue exactly one audit intent that the outbox
// processor materializes after commit. Consumption must never touch the
// average and must reject overdraws.
func TestStockAuditPipeline_ReceiveConsumeAndMaterialize(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bakehouse_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUserEmailInContext(ctx, "test@local")

	kg, err := models.CreateUnit(ctx, &models.NewUnit{
		Name:             "kilogram",
		Abbreviation:     "kg",
		MeasurementType:  models.MeasurementTypeWeight,
		BaseUnitName:     "gram",
		ConversionFactor: decimal.RequireFromString("1000"),
	})
	if err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	item, err := models.CreateInventoryItem(ctx, &models.NewInventoryItem{
		Code:            "FLOUR-01",
		Name:            "Bread Flour",
		OpeningStock:    decimal.RequireFromString("50"),
		OpeningUnitCost: decimal.RequireFromString("2.50"),
		PrimaryUnitId:   kg.ID,
	})
	if err != nil {
		t.Fatalf("CreateInventoryItem: %v", err)
	}

	var logsBefore int64
	if err := db.Model(&models.AuditLog{}).Count(&logsBefore).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}

	item, err = models.ReceiveStock(ctx, item.ID, decimal.RequireFromString("30"), decimal.RequireFromString("3.00"), time.Now(), "PO-1001")
	if err != nil {
		t.Fatalf("ReceiveStock: %v", err)
	}
	if item.CurrentStock.Cmp(decimal.RequireFromString("80")) != 0 {
		t.Fatalf("expected stock=80 after receipt; got %s", item.CurrentStock.String())
	}
	if item.CostPerUnit.Cmp(decimal.RequireFromString("2.6875")) != 0 {
		t.Fatalf("expected avg cost=2.6875 after receipt; got %s", item.CostPerUnit.String())
	}

	item, err = models.ConsumeStock(ctx, item.ID, decimal.RequireFromString("20"), "morning bake")
	if err != nil {
		t.Fatalf("ConsumeStock: %v", err)
	}
	if item.CurrentStock.Cmp(decimal.RequireFromString("60")) != 0 {
		t.Fatalf("expected stock=60 after consumption; got %s", item.CurrentStock.String())
	}
	if item.CostPerUnit.Cmp(decimal.RequireFromString("2.6875")) != 0 {
		t.Fatalf("consumption must not move the average; got %s", item.CostPerUnit.String())
	}
	if item.ClosingStock.Cmp(item.OpeningStock.Add(item.PurchasedQuantity).Sub(item.ConsumedQuantity)) != 0 {
		t.Fatalf("closing stock identity broken: %s", item.ClosingStock.String())
	}

	if _, err := models.ConsumeStock(ctx, item.ID, decimal.RequireFromString("1000"), "overdraw"); !errors.Is(err, models.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock; got %v", err)
	}

	if _, err := models.ReceiveStock(ctx, 999999, decimal.RequireFromString("1"), decimal.RequireFromString("1.00"), time.Now(), "PO-void"); !errors.Is(err, models.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound for unknown item; got %v", err)
	}

	var movements int64
	if err := db.Model(&models.StockMovement{}).Where("inventory_item_id = ?", item.ID).Count(&movements).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	// One "in" plus one "out"; the rejected overdraw must not leave a row.
	if movements != 2 {
		t.Fatalf("expected 2 movements; got %d", movements)
	}

	// Receipt and consumption each committed exactly one audit intent.
	var pending []models.AuditOutbox
	if err := db.Where("status = ?", models.OutboxStatusPending).Order("id ASC").Find(&pending).Error; err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending outbox rows; got %d", len(pending))
	}

	for i := range pending {
		rec := pending[i]
		if err := db.Transaction(func(tx *gorm.DB) error {
			return models.MaterializeAuditOutboxRecord(tx, &rec)
		}); err != nil {
			t.Fatalf("materialize outbox row %d: %v", rec.ID, err)
		}
	}

	var stillPending int64
	if err := db.Model(&models.AuditOutbox{}).Where("status = ?", models.OutboxStatusPending).Count(&stillPending).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if stillPending != 0 {
		t.Fatalf("expected outbox drained; %d still pending", stillPending)
	}

	var logsAfter int64
	if err := db.Model(&models.AuditLog{}).Count(&logsAfter).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	// Append-only: exactly the two materialized rows joined the trail.
	if logsAfter != logsBefore+2 {
		t.Fatalf("expected %d audit rows; got %d", logsBefore+2, logsAfter)
	}

	page, err := models.QueryLogs(ctx, models.AuditLogFilter{Resource: "inventory_item"})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	// CreateInventoryItem audited directly, receive and consume through the outbox.
	if page.Total != 3 {
		t.Fatalf("expected 3 inventory_item audit rows; got %d", page.Total)
	}
	for _, row := range page.Rows {
		if row.UserId != 1 {
			t.Fatalf("audit row %d not attributed to actor: user_id=%d", row.ID, row.UserId)
		}
	}

	// The export walks the whole trail page by page; every row must appear
	// exactly once in the workbook.
	buf, err := models.ExportAuditLogsXLSX(ctx, models.AuditLogFilter{})
	if err != nil {
		t.Fatalf("ExportAuditLogsXLSX: %v", err)
	}
	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows("Audit Logs")
	if err != nil {
		t.Fatalf("read exported sheet: %v", err)
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows[1:] {
		if len(r) == 0 {
			continue
		}
		if seen[r[0]] {
			t.Fatalf("audit row %s exported twice", r[0])
		}
		seen[r[0]] = true
	}
	if int64(len(seen)) != logsAfter {
		t.Fatalf("expected %d exported rows; got %d", logsAfter, len(seen))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bakehouse-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bakehouse-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=bakehouse_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
