package sqlstore

// Statements are executed one at a time; the MySQL driver rejects
// multi-statement strings unless multiStatements is set on the DSN.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products(name)`,

	`CREATE TABLE IF NOT EXISTS sales_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		sale_date TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT '',
		total_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		final_amount TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_by INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales_transactions(sale_date DESC)`,

	// product_id has no foreign key: products may be deleted while past
	// sales still reference them.
	`CREATE TABLE IF NOT EXISTS sales_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES sales_transactions(id),
		product_id INTEGER NOT NULL,
		quantity_sold INTEGER NOT NULL CHECK (quantity_sold > 0),
		unit_price TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_items_transaction ON sales_items(transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_items_product ON sales_items(product_id)`,

	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'Staff',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role_active ON users(role, is_active)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		description VARCHAR(500) NOT NULL DEFAULT '',
		category VARCHAR(50) NOT NULL DEFAULT '',
		price DECIMAL(18,2) NOT NULL,
		quantity INT NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		CHECK (quantity >= 0),
		INDEX idx_products_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS sales_transactions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		reference VARCHAR(64) NOT NULL UNIQUE,
		sale_date VARCHAR(40) NOT NULL,
		customer_name VARCHAR(100) NOT NULL DEFAULT '',
		phone_number VARCHAR(20) NOT NULL DEFAULT '',
		total_amount DECIMAL(18,2) NOT NULL,
		discount_amount DECIMAL(18,2) NOT NULL,
		final_amount DECIMAL(18,2) NOT NULL,
		notes VARCHAR(500) NOT NULL DEFAULT '',
		created_by BIGINT NOT NULL DEFAULT 0,
		INDEX idx_sales_date (sale_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS sales_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		transaction_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity_sold INT NOT NULL,
		unit_price DECIMAL(18,2) NOT NULL,
		CHECK (quantity_sold > 0),
		INDEX idx_sales_items_product (product_id),
		CONSTRAINT fk_sales_items_transaction FOREIGN KEY (transaction_id)
			REFERENCES sales_transactions(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(100) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'Staff',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at VARCHAR(40) NOT NULL,
		INDEX idx_users_role_active (role, is_active)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
