package sqlinline

const QClaimJob = `--sql 2f8c1a4e-6b3d-4f0a-9c5e-1d7b8e2a4c6f
with next_job as (
    select id
    from itinerary_jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update itinerary_jobs
    set status = 'generating', updated_at = now()
    where id in (select id from next_job)
    returning id, requester_id, request_json
)
select * from updated;
`

const QUpdateJobProgress = `--sql 7a1e9c3b-5d2f-4e8a-b6c4-0f3d9a7e1b5c
update itinerary_jobs
set progress_stage = greatest(progress_stage, $2),
    progress_message = $3,
    updated_at = now()
where id = $1
  and status = 'generating';
`

const QCompleteJob = `--sql 4c6b2e8f-1a9d-4d3b-8e5f-7c0a2b9d4e6a
update itinerary_jobs
set status = 'completed',
    progress_stage = progress_total,
    progress_message = $3,
    response_json = $2,
    updated_at = now(),
    completed_at = now()
where id = $1
  and status = 'generating';
`

const QFailJob = `--sql 9d3f7b1c-8e4a-4c2d-a5b6-2e8f0c4d7a9b
update itinerary_jobs
set status = 'failed',
    error_message = $2,
    updated_at = now(),
    completed_at = now()
where id = $1
  and status = 'generating';
`

const QNotifyJob = `--sql 6e2a8d4f-3c1b-4b7e-9f0d-5a6c3e9b2d8f
select pg_notify('itinerary_jobs', $1::text);
`
