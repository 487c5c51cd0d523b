package db

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  username TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student',
  created_at INTEGER NOT NULL,
  UNIQUE (tenant_id, username)
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  title TEXT NOT NULL,
  drip_enabled INTEGER NOT NULL DEFAULT 0,
  sequential_enabled INTEGER NOT NULL DEFAULT 1,
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS modules (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  position INTEGER NOT NULL,
  UNIQUE (course_id, position)
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  sequence_order INTEGER NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  drip_unlock_at INTEGER,
  UNIQUE (module_id, sequence_order)
);

CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  name TEXT NOT NULL,
  lesson_id TEXT REFERENCES lessons(id) ON DELETE SET NULL,
  submission_type TEXT NOT NULL DEFAULT 'text'
);

CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  version INTEGER NOT NULL,
  body_text TEXT NOT NULL DEFAULT '',
  file_key TEXT NOT NULL DEFAULT '',
  submitted_at INTEGER NOT NULL,
  reviewed_at INTEGER,
  reviewed_by TEXT,
  UNIQUE (assignment_id, student_id, version)
);

CREATE TABLE IF NOT EXISTS lesson_views (
  tenant_id TEXT NOT NULL DEFAULT 'local',
  user_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
  watched INTEGER NOT NULL DEFAULT 0,
  watched_at INTEGER,
  PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS pathways (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  title TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pathway_steps (
  pathway_id TEXT NOT NULL REFERENCES pathways(id) ON DELETE CASCADE,
  step_number INTEGER NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  choice_group TEXT,
  PRIMARY KEY (pathway_id, step_number, course_id)
);

CREATE TABLE IF NOT EXISTS pathway_choices (
  pathway_id TEXT NOT NULL REFERENCES pathways(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  choice_group TEXT NOT NULL,
  course_id TEXT NOT NULL,
  chosen_at INTEGER NOT NULL,
  PRIMARY KEY (pathway_id, student_id, choice_group)
);

CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  pathway_id TEXT REFERENCES pathways(id),
  step_number INTEGER,
  status TEXT NOT NULL DEFAULT 'active',
  drip_override INTEGER NOT NULL DEFAULT 0,
  drip_enabled INTEGER NOT NULL DEFAULT 0,
  sequential_override INTEGER NOT NULL DEFAULT 0,
  sequential_enabled INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS enrollments_one_active_per_pathway
  ON enrollments (student_id, pathway_id)
  WHERE status = 'active' AND pathway_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS enrollments_one_per_course
  ON enrollments (student_id, course_id);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  tenant_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                        -- e.g., lesson.watched
  key TEXT NOT NULL,                        -- natural key: lessonID, submissionID, ...
  data TEXT NOT NULL,                       -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  username TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student',
  created_at BIGINT NOT NULL,
  UNIQUE (tenant_id, username)
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  title TEXT NOT NULL,
  drip_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  sequential_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  created_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS modules (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  position INTEGER NOT NULL,
  UNIQUE (course_id, position)
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  sequence_order INTEGER NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  drip_unlock_at BIGINT,
  UNIQUE (module_id, sequence_order)
);

CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  name TEXT NOT NULL,
  lesson_id TEXT REFERENCES lessons(id) ON DELETE SET NULL,
  submission_type TEXT NOT NULL DEFAULT 'text'
);

CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  assignment_id TEXT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  version INTEGER NOT NULL,
  body_text TEXT NOT NULL DEFAULT '',
  file_key TEXT NOT NULL DEFAULT '',
  submitted_at BIGINT NOT NULL,
  reviewed_at BIGINT,
  reviewed_by TEXT,
  UNIQUE (assignment_id, student_id, version)
);

CREATE TABLE IF NOT EXISTS lesson_views (
  tenant_id TEXT NOT NULL DEFAULT 'local',
  user_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
  watched BOOLEAN NOT NULL DEFAULT FALSE,
  watched_at BIGINT,
  PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS pathways (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  title TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS pathway_steps (
  pathway_id TEXT NOT NULL REFERENCES pathways(id) ON DELETE CASCADE,
  step_number INTEGER NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  choice_group TEXT,
  PRIMARY KEY (pathway_id, step_number, course_id)
);

CREATE TABLE IF NOT EXISTS pathway_choices (
  pathway_id TEXT NOT NULL REFERENCES pathways(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  choice_group TEXT NOT NULL,
  course_id TEXT NOT NULL,
  chosen_at BIGINT NOT NULL,
  PRIMARY KEY (pathway_id, student_id, choice_group)
);

CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  pathway_id TEXT REFERENCES pathways(id),
  step_number INTEGER,
  status TEXT NOT NULL DEFAULT 'active',
  drip_override BOOLEAN NOT NULL DEFAULT FALSE,
  drip_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  sequential_override BOOLEAN NOT NULL DEFAULT FALSE,
  sequential_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS enrollments_one_active_per_pathway
  ON enrollments (student_id, pathway_id)
  WHERE status = 'active' AND pathway_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS enrollments_one_per_course
  ON enrollments (student_id, course_id);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
