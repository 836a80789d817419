/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements local form persistence and indexing.
// Each form is a JSON document under <root>/forms/<id>.json, written transactionally with timestamped backups of the previous version.
// A per-root SQLite catalog at <root>/.gfb/index.sqlite lists forms, their fields and saved revisions.
// The catalog is derived from the JSON documents and is rebuilt when missing or corrupt.
package storage
