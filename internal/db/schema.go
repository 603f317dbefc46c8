package db

// Table names.
const (
	TableDecoy      = "honeytrap"
	TableAccount    = "account"
	TablePost       = "post"
	TableComment    = "comment"
	TableLog        = "activity_log"
	TableDetection  = "detection"
	TableSession    = "conversation"
	TablePendingJob = "pending_job"
)

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- HONEYTRAP TABLE (decoy registry, keyed by username)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS honeytrap SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS username ON honeytrap TYPE string;
    DEFINE FIELD IF NOT EXISTS email ON honeytrap TYPE string;
    DEFINE FIELD IF NOT EXISTS purpose ON honeytrap TYPE string;
    DEFINE FIELD IF NOT EXISTS friends ON honeytrap TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS friend_requests ON honeytrap TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON honeytrap TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- ACCOUNT TABLE (generic account store, keyed by username)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS account SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS username ON account TYPE string;
    DEFINE FIELD IF NOT EXISTS email ON account TYPE string;
    DEFINE FIELD IF NOT EXISTS is_decoy ON account TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS friends ON account TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS friend_requests ON account TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON account TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- POSTS AND COMMENTS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS post SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON post TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON post TYPE string;
    DEFINE FIELD IF NOT EXISTS author_id ON post TYPE string;
    DEFINE FIELD IF NOT EXISTS likes_count ON post TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS dislikes_count ON post TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS comments_count ON post TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS comments ON post TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS hashtags ON post TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON post TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON post TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS post_author ON post FIELDS author_id;

    DEFINE TABLE IF NOT EXISTS comment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS post_id ON comment TYPE string;
    DEFINE FIELD IF NOT EXISTS author_id ON comment TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON comment TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON comment TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS comment_post ON comment FIELDS post_id;

    -- ==========================================================================
    -- ACTIVITY LOG (append-only)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS activity_log SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS username ON activity_log TYPE string;
    DEFINE FIELD IF NOT EXISTS action ON activity_log TYPE string;
    DEFINE FIELD IF NOT EXISTS timestamp ON activity_log TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS activity_log_timestamp ON activity_log FIELDS timestamp;
    DEFINE INDEX IF NOT EXISTS activity_log_username ON activity_log FIELDS username;

    -- ==========================================================================
    -- DETECTION REGISTRY (one record per username)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS detection SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS username ON detection TYPE string;
    DEFINE FIELD IF NOT EXISTS reasons ON detection TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS first_detected_at ON detection TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS last_detected_at ON detection TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS detection_last ON detection FIELDS last_detected_at;

    -- ==========================================================================
    -- CONVERSATION PROBES (keyed by models.SessionKey)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS initiator ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS counterpart ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS opening ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS history ON conversation TYPE array<object> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS history[*].is_decoy ON conversation TYPE bool;
    DEFINE FIELD IF NOT EXISTS history[*].message ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON conversation TYPE string ASSERT $value IN ["ongoing", "completed"];
    DEFINE FIELD IF NOT EXISTS result ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON conversation TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS prior_results ON conversation TYPE array<string> DEFAULT [];

    -- ==========================================================================
    -- PENDING SCHEDULER JOBS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS pending_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_id ON pending_job TYPE string;
    DEFINE FIELD IF NOT EXISTS action ON pending_job TYPE string;
    DEFINE FIELD IF NOT EXISTS args ON pending_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS fire_at ON pending_job TYPE datetime;
    DEFINE FIELD IF NOT EXISTS grace ON pending_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created ON pending_job TYPE datetime DEFAULT time::now();
`

// allTables lists every table, in wipe order.
var allTables = []string{
	TablePendingJob, TableSession, TableDetection, TableLog,
	TableComment, TablePost, TableAccount, TableDecoy,
}
