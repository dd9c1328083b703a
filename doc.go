// Package jobline implements a durable, embedded job queue backed by a
// local relational store.
//
// Applications create a Queue via New, passing a Store (an in-memory store
// by default, or a persistent one from sqlitestore/mysqlstore). Jobs are
// enqueued with Add or AddMany and picked up by one or more Workers, each
// bound to a single job type and a handler function. Workers claim jobs
// through an atomic compare-and-swap protocol so that any number of
// concurrent workers, in one process or many sharing the same store, never
// receive the same job twice.
//
// Recurring work is modelled through ScheduledJob rows: Schedule registers
// a cron expression for a type, and the queue's maintenance loop
// materialises a fresh Job whenever the schedule is due. The same loop
// requeues jobs whose handler took longer than the configured timeout, and
// optionally reaps old terminal jobs.
//
// The queue guarantees at-least-once execution: a job may run more than
// once if its handler's host process crashes or exceeds the configured
// timeout before marking it done. Handlers must be idempotent.
package jobline
