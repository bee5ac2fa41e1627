// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package queue persists jobs and runs them on a bounded worker pool.
//
// Jobs are stored through a storage.JobRepository before they run, so work
// survives a restart: jobs found running at Start are reset to pending and
// resubmitted. Each job runs under its handler's retry.Policy; the attempt
// counter and last error are written after every failed attempt.
//
// Final states map from the retry outcome:
//
//	success              -> succeeded
//	retry.Dropped        -> dropped
//	terminal / exhausted -> failed
//	shutdown             -> pending (picked up by the next Start)
package queue
