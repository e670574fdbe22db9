package warehouse

import "fmt"

// Table names the target table and its staging shadow.
type Table struct {
	Database string
	Name     string
}

// Qualified returns database.name.
func (t Table) Qualified() string {
	return fmt.Sprintf("`%s`.`%s`", t.Database, t.Name)
}

// Staging returns the shadow table rows are staged into before partitions are swapped.
func (t Table) Staging() Table {
	return Table{Database: t.Database, Name: t.Name + "_staging"}
}

// createTableDDL creates the bars table. ReplacingMergeTree collapses rows sharing the
// ORDER BY key (ticker, timestamp) at merge time; exact counts use FINAL.
// The column is pinned to UTC so toYYYYMM does not depend on the server timezone.
func createTableDDL(t Table) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
(
    `+"`timestamp`"+` DateTime('UTC'),
    `+"`ticker`"+` String,
    `+"`open`"+` Float64,
    `+"`high`"+` Float64,
    `+"`low`"+` Float64,
    `+"`close`"+` Float64,
    `+"`volume`"+` Int64
)
ENGINE = ReplacingMergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (ticker, timestamp)`, t.Qualified())
}

// createStagingDDL clones the target structure, which REPLACE PARTITION requires.
func createStagingDDL(t Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS %s", t.Staging().Qualified(), t.Qualified())
}

func truncateDDL(t Table) string {
	return fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", t.Qualified())
}

func insertSQL(t Table) string {
	return fmt.Sprintf("INSERT INTO %s", t.Qualified())
}

// replacePartitionSQL swaps partition id (yyyymm) of the target with the staged one:
// the target's rows for that month are dropped and the staged rows take their place.
func replacePartitionSQL(t Table, id string) string {
	return fmt.Sprintf("ALTER TABLE %s REPLACE PARTITION ID '%s' FROM %s", t.Qualified(), id, t.Staging().Qualified())
}

// stagedPartitionsSQL lists the partition ids the server assigned to staged rows.
func stagedPartitionsSQL(t Table) string {
	return fmt.Sprintf("SELECT DISTINCT _partition_id FROM %s ORDER BY _partition_id", t.Staging().Qualified())
}

func countSQL(t Table) string {
	return fmt.Sprintf("SELECT count() FROM %s FINAL", t.Qualified())
}
