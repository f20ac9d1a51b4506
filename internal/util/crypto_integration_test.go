package util

import (
	"path/filepath"
	"strings"
	"testing"

	"recon-ledger/internal/config"
	"recon-ledger/internal/database"
	"recon-ledger/internal/models"

	"gorm.io/gorm"
)

// TestIntegration_SecretCheckFlow 集成测试：密钥校验值完整流程
func TestIntegration_SecretCheckFlow(t *testing.T) {
	// 1. 初始化测试数据库
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	// 2. 生成校验值并保存用户
	secret := strings.Repeat("0f", 32)
	check, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	user := models.User{ID: "u-1", Email: "check@example.com", SecretCheck: check}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Create user failed: %v", err)
	}

	// 3. 从数据库查询并校验
	var dbUser models.User
	if err := db.Where("email = ?", "check@example.com").First(&dbUser).Error; err != nil {
		t.Fatalf("Query user failed: %v", err)
	}
	if !CheckSecret(secret, dbUser.SecretCheck) {
		t.Error("CheckSecret should accept the original secret")
	}
	if CheckSecret(strings.Repeat("f0", 32), dbUser.SecretCheck) {
		t.Error("CheckSecret should reject another secret")
	}
}

// TestIntegration_TransactionFieldEncryption 集成测试：流水敏感字段加密落库
func TestIntegration_TransactionFieldEncryption(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	fc, err := NewFieldCipher(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("NewFieldCipher failed: %v", err)
	}

	// 1. 加密描述和分类
	sensitiveDesc := "Pharmacy: prescription refill"
	encDesc, err := fc.Encrypt(sensitiveDesc)
	if err != nil {
		t.Fatalf("Encrypt description failed: %v", err)
	}
	category := "Healthcare"
	encCat, err := fc.EncryptPtr(&category)
	if err != nil {
		t.Fatalf("Encrypt category failed: %v", err)
	}

	// 2. 保存流水
	tx := models.Transaction{
		ID:          "t-1",
		OwnerID:     "u-1",
		Date:        "2024-04-01",
		Description: encDesc,
		AmountCent:  4250,
		Type:        "debit",
		Category:    encCat,
	}
	if err := db.Create(&tx).Error; err != nil {
		t.Fatalf("Create transaction failed: %v", err)
	}

	// 3. 原始列中不应出现明文
	var raw struct {
		Description string
		Category    string
	}
	if err := db.Raw("SELECT description, category FROM transactions WHERE id = ?", "t-1").Scan(&raw).Error; err != nil {
		t.Fatalf("raw query failed: %v", err)
	}
	if strings.Contains(raw.Description, "Pharmacy") || strings.Contains(raw.Category, "Health") {
		t.Errorf("plaintext stored at rest: %+v", raw)
	}
	if strings.Count(raw.Description, ":") != 2 {
		t.Errorf("description = %q, want iv:tag:ciphertext", raw.Description)
	}

	// 4. 解密
	var dbTx models.Transaction
	if err := db.First(&dbTx, "id = ?", "t-1").Error; err != nil {
		t.Fatalf("Query transaction failed: %v", err)
	}
	if got, ok := fc.Decrypt(dbTx.Description); !ok || got != sensitiveDesc {
		t.Errorf("Decrypt description = (%q, %v)", got, ok)
	}
	if got := fc.DecryptPtr(dbTx.Category); got == nil || *got != category {
		t.Errorf("Decrypt category = %v", got)
	}

	// 5. 错误密钥解密
	other, _ := NewFieldCipher(strings.Repeat("cd", 32))
	if _, ok := other.Decrypt(dbTx.Description); ok {
		t.Error("Decrypt should fail with another secret")
	}
}

// ==================== 辅助函数 ====================

// setupTestDB 初始化测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{
		Path:    filepath.Join(t.TempDir(), "test_crypto_integration.db"),
		LogMode: false,
	}

	db, err := database.Init(cfg)
	if err != nil {
		t.Fatalf("Init test database failed: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

// cleanupTestDB 关闭数据库；文件随 TempDir 一起删除
func cleanupTestDB(t *testing.T, db *gorm.DB) {
	if err := database.Close(db); err != nil {
		t.Logf("close test db: %v", err)
	}
}
